// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists documents, sanctions records, list snapshots and
// batch runs in SQLite, with an FTS5 index over record names and aliases.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const (
	extractedDir    = "extracted"
	indexDir        = "index"
	dbFile          = "sanctions.db"
	extractedSuffix = "-records.yaml"
)

// Source keys for records that come from the external lists. Records
// extracted from a PDF are keyed by DocumentSource.
const (
	SourceOFAC  = string(types.ListOFAC)
	SourceUN    = string(types.ListUN)
	SourcePDF   = "pdf"
	SourceBatch = "batch"
)

// DocumentSource returns the record source key for an uploaded document.
func DocumentSource(documentID string) string {
	return SourcePDF + ":" + documentID
}

// BatchSource returns the record source key for a batch's consolidated set.
func BatchSource(batchID string) string {
	return SourceBatch + ":" + batchID
}

// RecordID returns a stable identifier for a record within a source: the
// first 12 hex characters of SHA-256 over source, name, type and ID_1.
func RecordID(source string, r types.Record) string {
	h := sha256.New()
	for _, part := range []string{source, r.Name, string(r.Type), r.ID1} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Store manages the sanctions SQLite database.
type Store struct {
	db         *sql.DB
	dataDir    string
	maxResults int
}

// NewStore opens or creates the database at dataDir/index/sanctions.db and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; batch workers share this handle.
	db.SetMaxOpenConns(1)

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	s := &Store{
		db:         db,
		dataDir:    cfg.DataDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			pdf_path TEXT,
			markdown_path TEXT,
			size_bytes INTEGER,
			uploaded_at TEXT,
			conversion_status TEXT,
			extraction_status TEXT,
			record_count INTEGER,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			document_id TEXT,
			batch_id TEXT,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			aliases TEXT,
			type TEXT,
			date_of_birth TEXT,
			place_of_birth TEXT,
			gender TEXT,
			nationality TEXT,
			country TEXT,
			id_1 TEXT,
			id_type1 TEXT,
			id_2 TEXT,
			id_type2 TEXT,
			date_of_listing TEXT,
			watchlist TEXT,
			other_info TEXT,
			dob_dj TEXT,
			dob_year TEXT,
			source_file TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`,
		`CREATE INDEX IF NOT EXISTS idx_records_type ON records(type)`,
		`CREATE INDEX IF NOT EXISTS idx_records_watchlist ON records(watchlist)`,
		`CREATE TABLE IF NOT EXISTS list_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			url TEXT,
			fetched_at TEXT NOT NULL,
			generated_at TEXT,
			record_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_source ON list_snapshots(source, fetched_at)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			summary TEXT,
			failures TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			document_id TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(name, aliases, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, name, aliases) VALUES (new.rowid, new.name, new.aliases);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, name, aliases) VALUES('delete', old.rowid, old.name, old.aliases);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, name, aliases) VALUES('delete', old.rowid, old.name, old.aliases);
				INSERT INTO records_fts(rowid, name, aliases) VALUES (new.rowid, new.name, new.aliases);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// ReplaceRecords atomically replaces every record stored under source.
// batchID may be empty.
func (s *Store) ReplaceRecords(ctx context.Context, source, batchID string, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceRecords(ctx, tx, source, batchID, records); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceRecords(ctx context.Context, tx *sql.Tx, source, batchID string, records []types.Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, source); err != nil {
		return fmt.Errorf("deleting old records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, source, document_id, batch_id, seq, `+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, `+placeholders(recordColumnCount)+`)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	documentID := ""
	if strings.HasPrefix(source, SourcePDF+":") {
		documentID = strings.TrimPrefix(source, SourcePDF+":")
	}

	for i, r := range records {
		args := []any{RecordID(source, r), source, nullString(documentID), nullString(batchID), i}
		for _, v := range r.Values() {
			args = append(args, v)
		}
		args = append(args, r.SourceFile)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting record %q: %w", r.Name, err)
		}
	}
	return nil
}

// IngestSummary holds counts from an ingestion run over extracted results.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of result files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads extraction results from dataDir/extracted/ and stores their
// records under each document's source key. Files whose modification time
// matches the last ingestion are skipped.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	extractDir := filepath.Join(s.dataDir, extractedDir)

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading extraction directory %s: %w", extractDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), extractedSuffix) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		docID := strings.TrimSuffix(entry.Name(), extractedSuffix)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE document_id = ?`, docID,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", docID)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		data, err := os.ReadFile(filepath.Join(extractDir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		var result types.ExtractionResult
		if err := yaml.Unmarshal(data, &result); err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", docID, err)
			summary.Failed++
			continue
		}

		if err := s.ingestResult(ctx, docID, &result, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d records)\n", docID, len(result.Records))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d records)\n", docID, len(result.Records))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

func (s *Store) ingestResult(ctx context.Context, docID string, result *types.ExtractionResult, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	fileName := result.SourceFile
	if fileName == "" {
		fileName = docID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, file_name, extraction_status, record_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			extraction_status=excluded.extraction_status, record_count=excluded.record_count`,
		docID, fileName, string(types.ExtractionDone), len(result.Records),
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	if err := replaceRecords(ctx, tx, DocumentSource(docID), "", result.Records); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (document_id, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		docID, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
