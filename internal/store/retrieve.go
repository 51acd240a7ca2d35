// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// recordColumns lists the record columns in types.Columns order followed by
// source_file.
const recordColumns = `name, aliases, type, date_of_birth, place_of_birth, gender,
	nationality, country, id_1, id_type1, id_2, id_type2,
	date_of_listing, watchlist, other_info, dob_dj, dob_year, source_file`

const recordColumnCount = 18

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// QueryOptions holds parameters for record queries.
type QueryOptions struct {
	// Query is a full-text search over names and aliases. Each word is
	// matched as a prefix; all words must match.
	Query string

	// Type filters by record type.
	Type types.RecordType

	// Watchlist filters by exact watchlist label.
	Watchlist string

	// Source filters by source key. A bare prefix such as "pdf" matches
	// every key under it ("pdf:<document id>").
	Source string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Type == "" && q.Watchlist == "" && q.Source == ""
}

// StoredRecord is a Record with its store identity.
type StoredRecord struct {
	types.Record `yaml:",inline"`

	ID      string `json:"id" yaml:"id"`
	Source  string `json:"source" yaml:"source"`
	BatchID string `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
}

// Retrieve queries records with optional full-text search and structured
// filters. Full-text results are ranked by relevance; others are ordered
// by source and insertion order.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]StoredRecord, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		match  = ftsQuery(opts.Query)
		useFTS = match != ""
	)

	if useFTS {
		qb.WriteString(`SELECT r.id, r.source, r.batch_id, ` + prefixed("r", recordColumns) + `
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`)
		args = append(args, match)
	} else {
		qb.WriteString(`SELECT r.id, r.source, r.batch_id, ` + prefixed("r", recordColumns) + `
			FROM records r
			WHERE 1=1`)
	}

	if opts.Type != "" {
		qb.WriteString(` AND r.type = ?`)
		args = append(args, string(opts.Type))
	}

	if opts.Watchlist != "" {
		qb.WriteString(` AND r.watchlist = ?`)
		args = append(args, opts.Watchlist)
	}

	if opts.Source != "" {
		qb.WriteString(` AND (r.source = ? OR r.source LIKE ?)`)
		args = append(args, opts.Source, opts.Source+":%")
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.source, r.seq`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var results []StoredRecord
	for rows.Next() {
		var (
			sr      StoredRecord
			batchID sql.NullString
		)
		dest := append([]any{&sr.ID, &sr.Source, &batchID}, recordDest(&sr.Record)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		sr.BatchID = batchID.String
		results = append(results, sr)
	}

	return results, rows.Err()
}

// LatestRecords returns every record stored under source (or under any key
// with that prefix) in insertion order.
func (s *Store) LatestRecords(ctx context.Context, source string) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE source = ? OR source LIKE ?
		 ORDER BY source, seq`,
		source, source+":%",
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s records: %w", source, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var r types.Record
		if err := rows.Scan(recordDest(&r)...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats holds the dashboard counters.
type Stats struct {
	Documents          int       `json:"documents"`
	DocumentsExtracted int       `json:"documents_extracted"`
	PDFRecords         int       `json:"pdf_records"`
	OFACRecords        int       `json:"ofac_records"`
	UNRecords          int       `json:"un_records"`
	Batches            int       `json:"batches"`
	LastOFAC           time.Time `json:"last_ofac,omitzero"`
	LastUN             time.Time `json:"last_un,omitzero"`
}

// TotalRecords is the number of records across PDFs and both lists.
func (s Stats) TotalRecords() int {
	return s.PDFRecords + s.OFACRecords + s.UNRecords
}

// Stats returns counts of stored documents, records and batches, and the
// time of the latest snapshot of each list.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&st.Documents, `SELECT count(*) FROM documents`, nil},
		{&st.DocumentsExtracted, `SELECT count(*) FROM documents WHERE extraction_status = ?`, []any{string(types.ExtractionDone)}},
		{&st.PDFRecords, `SELECT count(*) FROM records WHERE source LIKE ?`, []any{SourcePDF + ":%"}},
		{&st.OFACRecords, `SELECT count(*) FROM records WHERE source = ?`, []any{SourceOFAC}},
		{&st.UNRecords, `SELECT count(*) FROM records WHERE source = ?`, []any{SourceUN}},
		{&st.Batches, `SELECT count(*) FROM batches`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("counting: %w", err)
		}
	}

	for src, dest := range map[types.ListSource]*time.Time{
		types.ListOFAC: &st.LastOFAC,
		types.ListUN:   &st.LastUN,
	} {
		snap, err := s.LatestSnapshot(ctx, src)
		if err != nil {
			continue
		}
		*dest = snap.FetchedAt
	}

	return st, nil
}

// ftsQuery turns free text into an FTS5 expression of quoted prefix terms.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func recordDest(r *types.Record) []any {
	return []any{
		&r.Name, &r.Aliases, (*string)(&r.Type), &r.DateOfBirth, &r.PlaceOfBirth, &r.Gender,
		&r.Nationality, &r.Country, &r.ID1, &r.IDType1, &r.ID2, &r.IDType2,
		&r.DateOfListing, &r.Watchlist, &r.OtherInfo, &r.DOBDJ, &r.DOBYear, &r.SourceFile,
	}
}
