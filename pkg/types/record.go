// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// RecordType categorizes a sanctioned party.
type RecordType string

const (
	TypeIndividual RecordType = "Individual"
	TypeEntity     RecordType = "Entity"
	TypeVessel     RecordType = "Vessel"
	TypePort       RecordType = "Port"
	TypeAirport    RecordType = "Airport"
	TypeAirplane   RecordType = "Airplane"
)

// KnownRecordTypes lists the types the extraction prompt asks for.
var KnownRecordTypes = []RecordType{
	TypeIndividual, TypeEntity, TypeVessel, TypePort, TypeAirport, TypeAirplane,
}

// IsKnown reports whether t is one of KnownRecordTypes.
func (t RecordType) IsKnown() bool {
	for _, k := range KnownRecordTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Source file labels used in the Source_File column of consolidated output.
const (
	SourceOFAC = "OFAC_API"
	SourceUN   = "UN_API"
)

// Watchlist labels after standardization.
const (
	WatchlistOFAC    = "OFAC"
	WatchlistUN      = "UN"
	WatchlistEU      = "EU"
	WatchlistUnknown = "Unknown"

	// WatchlistOFACSDN is the raw label the OFAC parser assigns.
	WatchlistOFACSDN = "OFAC - Specially Designated National List"
)

// Columns is the canonical CSV header, in order.
var Columns = []string{
	"Name", "Aliases", "Type", "Date of Birth", "Place of Birth", "Gender",
	"Nationality", "COUNTRY", "ID_1", "ID_Type1", "ID_2", "ID_Type2",
	"Date of listing", "Watchlist", "Other info", "DOB_DJ", "DOB_YEAR",
}

// ColumnSourceFile is appended to Columns in consolidated output.
const ColumnSourceFile = "Source_File"

// Record is one sanctioned party in the canonical 17-column layout.
type Record struct {
	Name          string     `json:"name" yaml:"name"`
	Aliases       string     `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Type          RecordType `json:"type" yaml:"type"`
	DateOfBirth   string     `json:"date_of_birth,omitempty" yaml:"date_of_birth,omitempty"`
	PlaceOfBirth  string     `json:"place_of_birth,omitempty" yaml:"place_of_birth,omitempty"`
	Gender        string     `json:"gender,omitempty" yaml:"gender,omitempty"`
	Nationality   string     `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	Country       string     `json:"country,omitempty" yaml:"country,omitempty"`
	ID1           string     `json:"id_1,omitempty" yaml:"id_1,omitempty"`
	IDType1       string     `json:"id_type1,omitempty" yaml:"id_type1,omitempty"`
	ID2           string     `json:"id_2,omitempty" yaml:"id_2,omitempty"`
	IDType2       string     `json:"id_type2,omitempty" yaml:"id_type2,omitempty"`
	DateOfListing string     `json:"date_of_listing,omitempty" yaml:"date_of_listing,omitempty"`
	Watchlist     string     `json:"watchlist,omitempty" yaml:"watchlist,omitempty"`
	OtherInfo     string     `json:"other_info,omitempty" yaml:"other_info,omitempty"`
	DOBDJ         string     `json:"dob_dj,omitempty" yaml:"dob_dj,omitempty"`
	DOBYear       string     `json:"dob_year,omitempty" yaml:"dob_year,omitempty"`

	// SourceFile is OFAC_API, UN_API, or the uploaded file name.
	SourceFile string `json:"source_file,omitempty" yaml:"source_file,omitempty"`
}

// Values returns the record's fields in Columns order.
func (r Record) Values() []string {
	return []string{
		r.Name, r.Aliases, string(r.Type), r.DateOfBirth, r.PlaceOfBirth, r.Gender,
		r.Nationality, r.Country, r.ID1, r.IDType1, r.ID2, r.IDType2,
		r.DateOfListing, r.Watchlist, r.OtherInfo, r.DOBDJ, r.DOBYear,
	}
}

// Set assigns value to the field named by column. Column matching ignores
// case, surrounding space, and the difference between spaces and
// underscores. It reports whether the column was recognized.
func (r *Record) Set(column, value string) bool {
	switch NormalizeColumn(column) {
	case "name":
		r.Name = value
	case "aliases":
		r.Aliases = value
	case "type":
		r.Type = RecordType(value)
	case "date_of_birth":
		r.DateOfBirth = value
	case "place_of_birth":
		r.PlaceOfBirth = value
	case "gender":
		r.Gender = value
	case "nationality":
		r.Nationality = value
	case "country":
		r.Country = value
	case "id_1":
		r.ID1 = value
	case "id_type1":
		r.IDType1 = value
	case "id_2":
		r.ID2 = value
	case "id_type2":
		r.IDType2 = value
	case "date_of_listing":
		r.DateOfListing = value
	case "watchlist":
		r.Watchlist = value
	case "other_info":
		r.OtherInfo = value
	case "dob_dj":
		r.DOBDJ = value
	case "dob_year":
		r.DOBYear = value
	case "source_file":
		r.SourceFile = value
	default:
		return false
	}
	return true
}

// NormalizeColumn folds a header cell to its lookup key.
func NormalizeColumn(column string) string {
	c := strings.ToLower(strings.TrimSpace(column))
	c = strings.TrimPrefix(c, "\ufeff")
	return strings.Join(strings.Fields(c), "_")
}

// AliasList splits the semicolon-separated Aliases field.
func (r Record) AliasList() []string {
	if r.Aliases == "" {
		return nil
	}
	parts := strings.Split(r.Aliases, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
