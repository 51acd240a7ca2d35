// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ofac fetches the OFAC sanctions list service delta file and maps
// newly added entities to canonical records.
package ofac

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/sanctions-engine/internal/httputil"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// Namespace is the XML namespace of the delta file.
const Namespace = "https://www.treasury.gov/ofac/DeltaFile/1.0"

// cacheFile is where the last downloaded delta is kept under dataDir/lists/.
const cacheFile = "ofac-delta.xml"

// Reference ids used by the delta file.
const (
	featureVesselFlag  = "3"
	featureBirthdate   = "8"
	featurePlaceBirth  = "9"
	featureNationality = "10"
	featureGender      = "224"
)

var entityTypes = map[string]types.RecordType{
	"600": types.TypeIndividual,
	"601": types.TypeEntity,
	"602": types.TypeVessel,
}

var documentTypes = map[string]string{
	"1571":  "Passport",
	"1584":  "National ID",
	"1608":  "Identification Number",
	"1626":  "Vessel Registration",
	"1632":  "Residency Number",
	"91264": "MMSI",
	"91761": "Registration Number",
	"1575":  "Driver License",
	"1576":  "Tax ID",
	"1577":  "Social Security Number",
	"1578":  "Business Registration",
	"1579":  "Military ID",
}

var programs = map[string]string{
	"91901": "IRAN-EO13902",
	"91902": "IRAN-EO13902",
	"1556":  "UKRAINE-EO13660",
	"1557":  "UKRAINE-EO13661",
	"1558":  "UKRAINE-EO13662",
	"1559":  "UKRAINE-EO13685",
	"1560":  "RUSSIA-EO14024",
	"1550":  "SDN",
	"1551":  "CRIM",
	"1552":  "SYRIA",
	"1553":  "CUBA",
	"1554":  "NORTH KOREA",
	"1555":  "NICARAGUA",
}

// DocumentTypeName maps an identity document type ref to a readable name.
func DocumentTypeName(ref string) string {
	if name, ok := documentTypes[ref]; ok {
		return name
	}
	return "Doc Type " + ref
}

// ProgramName maps a sanctions program ref to its short code.
func ProgramName(ref string) string {
	if name, ok := programs[ref]; ok {
		return name
	}
	return "Program " + ref
}

// Client downloads the OFAC delta file.
type Client struct {
	cfg     types.OFACConfig
	http    *http.Client
	dataDir string
}

// NewClient creates a client for cfg. When dataDir is non-empty the raw XML
// of each successful fetch is cached under dataDir/lists/.
func NewClient(cfg types.OFACConfig, dataDir string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = types.DefaultOFACURL
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		dataDir: dataDir,
	}
}

// URL returns the endpoint the client fetches.
func (c *Client) URL() string { return c.cfg.URL }

// Fetch downloads the latest delta file and returns its raw XML.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	body, err := httputil.Get(ctx, c.http, c.cfg.URL, c.cfg.UserAgent, "application/xml", c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetching OFAC delta: %w", err)
	}
	if c.dataDir != "" {
		if err := httputil.WriteFileAtomic(CachePath(c.dataDir), body); err != nil {
			return nil, fmt.Errorf("caching OFAC delta: %w", err)
		}
	}
	return body, nil
}

// FetchRecords downloads and parses the delta file.
func (c *Client) FetchRecords(ctx context.Context) ([]types.Record, types.ListSnapshot, error) {
	body, err := c.Fetch(ctx)
	if err != nil {
		return nil, types.ListSnapshot{}, err
	}
	records, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, types.ListSnapshot{}, err
	}
	return records, types.ListSnapshot{
		Source:      types.ListOFAC,
		URL:         c.cfg.URL,
		FetchedAt:   time.Now().UTC(),
		RecordCount: len(records),
	}, nil
}

// CachePath returns where the raw delta file is cached.
func CachePath(dataDir string) string {
	return filepath.Join(dataDir, "lists", cacheFile)
}

type refElem struct {
	RefID string `xml:"refId,attr"`
}

type entity struct {
	Action     string     `xml:"action,attr"`
	EntityType *refElem   `xml:"generalInfo>entityType"`
	Names      []name     `xml:"names>name"`
	Features   []feature  `xml:"features>feature"`
	Addresses  []address  `xml:"addresses>address"`
	Documents  []document `xml:"identityDocuments>identityDocument"`
	Lists      []list     `xml:"sanctionsLists>sanctionsList"`
	Programs   []refElem  `xml:"sanctionsPrograms>sanctionsProgram"`
}

type name struct {
	IsPrimary    string        `xml:"isPrimary"`
	Translations []translation `xml:"translations>translation"`
}

type translation struct {
	FormattedFullName string `xml:"formattedFullName"`
}

type feature struct {
	Type struct {
		FeatureTypeID string `xml:"featureTypeId,attr"`
	} `xml:"type"`
	Value string `xml:"value"`
}

type address struct {
	Country string `xml:"country"`
}

type document struct {
	Type           refElem `xml:"type"`
	DocumentNumber string  `xml:"documentNumber"`
}

type list struct {
	DatePublished string `xml:"datePublished,attr"`
}

// Parse reads a delta file and returns one record per added entity that has
// a primary name, in document order.
func Parse(r io.Reader) ([]types.Record, error) {
	dec := xml.NewDecoder(r)
	var records []types.Record
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing OFAC XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "entity" {
			continue
		}
		var e entity
		if err := dec.DecodeElement(&e, &start); err != nil {
			return nil, fmt.Errorf("decoding OFAC entity: %w", err)
		}
		if e.Action != "add" {
			continue
		}
		rec := e.record()
		if rec.Name == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

func (e entity) record() types.Record {
	var rec types.Record

	if e.EntityType != nil {
		if t, ok := entityTypes[e.EntityType.RefID]; ok {
			rec.Type = t
		} else {
			rec.Type = types.RecordType("Type " + e.EntityType.RefID)
		}
	}

	var aliases []string
	for _, n := range e.Names {
		primary := strings.TrimSpace(n.IsPrimary) == "true"
		for _, tr := range n.Translations {
			full := strings.TrimSpace(tr.FormattedFullName)
			if full == "" {
				continue
			}
			if primary {
				if rec.Name == "" {
					rec.Name = full
				}
				continue
			}
			aliases = append(aliases, full)
		}
	}
	rec.Aliases = strings.Join(aliases, "; ")

	var nationalities []string
	var vesselFlag string
	for _, f := range e.Features {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		switch f.Type.FeatureTypeID {
		case featureBirthdate:
			rec.DateOfBirth = value
			rec.DOBDJ, rec.DOBYear = splitBirthdate(value)
		case featurePlaceBirth:
			rec.PlaceOfBirth = value
		case featureGender:
			if lower := strings.ToLower(value); lower == "male" || lower == "female" {
				value = lower
			}
			rec.Gender = value
		case featureNationality:
			nationalities = append(nationalities, value)
		case featureVesselFlag:
			vesselFlag = value
		}
	}
	rec.Nationality = strings.Join(nationalities, "; ")

	switch {
	case rec.Type == types.TypeVessel && vesselFlag != "":
		rec.Country = vesselFlag
	case len(nationalities) > 0:
		rec.Country = nationalities[0]
	default:
		for _, a := range e.Addresses {
			if c := strings.TrimSpace(a.Country); c != "" {
				rec.Country = c
				break
			}
		}
	}

	n := 0
	for _, d := range e.Documents {
		number := strings.TrimSpace(d.DocumentNumber)
		if number == "" {
			continue
		}
		switch n {
		case 0:
			rec.ID1, rec.IDType1 = number, DocumentTypeName(d.Type.RefID)
		case 1:
			rec.ID2, rec.IDType2 = number, DocumentTypeName(d.Type.RefID)
		}
		n++
		if n == 2 {
			break
		}
	}

	if len(e.Lists) > 0 {
		rec.Watchlist = types.WatchlistOFACSDN
		if published := e.Lists[0].DatePublished; published != "" {
			rec.DateOfListing = published
			if t, err := time.Parse("2006-01-02", published); err == nil {
				rec.DateOfListing = t.Format("02/01/2006")
			}
		}
	}

	var progs []string
	for _, p := range e.Programs {
		progs = append(progs, ProgramName(p.RefID))
	}
	rec.OtherInfo = strings.Join(progs, "; ")

	rec.SourceFile = types.SourceOFAC
	return rec
}

// splitBirthdate returns the dd/mm/yyyy form and the year of an OFAC
// birthdate. Values that are not a full date yield only the first year found.
func splitBirthdate(value string) (dj, year string) {
	for _, layout := range []string{"2 Jan 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("02/01/2006"), t.Format("2006")
		}
	}
	if m := yearPattern.FindStringSubmatch(value); m != nil {
		return "", m[1]
	}
	return "", ""
}
