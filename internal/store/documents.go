// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// SaveDocument inserts or updates a document row.
func (s *Store) SaveDocument(ctx context.Context, doc *types.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, file_name, pdf_path, markdown_path, size_bytes, uploaded_at,
			conversion_status, extraction_status, record_count, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			file_name=excluded.file_name, pdf_path=excluded.pdf_path,
			markdown_path=excluded.markdown_path, size_bytes=excluded.size_bytes,
			uploaded_at=excluded.uploaded_at, conversion_status=excluded.conversion_status,
			extraction_status=excluded.extraction_status, record_count=excluded.record_count,
			error=excluded.error`,
		doc.ID, doc.FileName, doc.PDFPath, doc.MarkdownPath, doc.SizeBytes,
		formatTime(doc.UploadedAt), string(doc.ConversionStatus), string(doc.ExtractionStatus),
		doc.RecordCount, doc.Error,
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}
	return nil
}

const documentColumns = `id, file_name, pdf_path, markdown_path, size_bytes, uploaded_at,
	conversion_status, extraction_status, record_count, error`

// Document returns the document with the given ID.
func (s *Store) Document(ctx context.Context, id string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return doc, err
}

// Documents returns all documents, most recently uploaded first.
func (s *Store) Documents(ctx context.Context) ([]*types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*types.Document, error) {
	var (
		doc                                 types.Document
		pdfPath, mdPath, uploaded, convStat sql.NullString
		extStat, docErr                     sql.NullString
		size                                sql.NullInt64
		count                               sql.NullInt64
	)
	err := sc.Scan(&doc.ID, &doc.FileName, &pdfPath, &mdPath, &size, &uploaded,
		&convStat, &extStat, &count, &docErr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.PDFPath = pdfPath.String
	doc.MarkdownPath = mdPath.String
	doc.SizeBytes = size.Int64
	doc.UploadedAt = parseTime(uploaded.String)
	doc.ConversionStatus = types.ConversionStatus(convStat.String)
	doc.ExtractionStatus = types.ExtractionStatus(extStat.String)
	doc.RecordCount = int(count.Int64)
	doc.Error = docErr.String
	return &doc, nil
}

// SaveSnapshot records a list fetch and replaces the list's records in one
// transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap types.ListSnapshot, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO list_snapshots (source, url, fetched_at, generated_at, record_count)
		 VALUES (?, ?, ?, ?, ?)`,
		string(snap.Source), snap.URL, formatTime(snap.FetchedAt),
		formatTime(snap.GeneratedAt), snap.RecordCount,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	if err := replaceRecords(ctx, tx, string(snap.Source), "", records); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestSnapshot returns the most recent snapshot of src.
func (s *Store) LatestSnapshot(ctx context.Context, src types.ListSource) (types.ListSnapshot, error) {
	var (
		snap            types.ListSnapshot
		source, fetched string
		url, generated  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source, url, fetched_at, generated_at, record_count
		 FROM list_snapshots WHERE source = ?
		 ORDER BY fetched_at DESC, id DESC LIMIT 1`, string(src),
	).Scan(&source, &url, &fetched, &generated, &snap.RecordCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ListSnapshot{}, fmt.Errorf("%s snapshot: %w", src, types.ErrNotFound)
		}
		return types.ListSnapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}
	snap.Source = types.ListSource(source)
	snap.URL = url.String
	snap.FetchedAt = parseTime(fetched)
	snap.GeneratedAt = parseTime(generated.String)
	return snap, nil
}

// SaveBatch stores a batch run together with its consolidated records.
func (s *Store) SaveBatch(ctx context.Context, run *types.BatchRun, records []types.Record) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("marshaling failures: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, started_at, finished_at, summary, failures)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished_at=excluded.finished_at, summary=excluded.summary, failures=excluded.failures`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		string(summary), string(failures),
	)
	if err != nil {
		return fmt.Errorf("saving batch %s: %w", run.ID, err)
	}

	if err := replaceRecords(ctx, tx, BatchSource(run.ID), run.ID, records); err != nil {
		return err
	}
	return tx.Commit()
}

// Batch returns the batch run with the given ID.
func (s *Store) Batch(ctx context.Context, id string) (*types.BatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, summary, failures FROM batches WHERE id = ?`, id)
	run, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, types.ErrNotFound)
	}
	return run, err
}

// Batches returns up to limit batch runs, most recent first.
func (s *Store) Batches(ctx context.Context, limit int) ([]*types.BatchRun, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, summary, failures FROM batches
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var runs []*types.BatchRun
	for rows.Next() {
		run, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanBatch(sc scanner) (*types.BatchRun, error) {
	var (
		run               types.BatchRun
		started           string
		finished          sql.NullString
		summary, failures sql.NullString
	)
	if err := sc.Scan(&run.ID, &started, &finished, &summary, &failures); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning batch: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished.String)
	if summary.Valid {
		if err := json.Unmarshal([]byte(summary.String), &run.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of batch %s: %w", run.ID, err)
		}
	}
	if failures.Valid {
		if err := json.Unmarshal([]byte(failures.String), &run.Failures); err != nil {
			return nil, fmt.Errorf("decoding failures of batch %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// timeLayout has a fixed-width fraction so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
