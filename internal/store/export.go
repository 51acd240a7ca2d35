// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

const exportLimit = 1000000

// ExportYAML writes the records matching opts to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	records, err := s.exportRecords(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the records matching opts to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	records, err := s.exportRecords(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

// WriteExport writes the export to dataDir/index/export.<format> and
// returns the path.
func (s *Store) WriteExport(ctx context.Context, format ExportFormat, opts QueryOptions) (string, error) {
	if format != FormatYAML && format != FormatJSON {
		return "", fmt.Errorf("unknown export format %q", format)
	}

	path := filepath.Join(s.dataDir, indexDir, "export."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if format == FormatYAML {
		err = s.ExportYAML(ctx, f, opts)
	} else {
		err = s.ExportJSON(ctx, f, opts)
	}
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

func (s *Store) exportRecords(ctx context.Context, opts QueryOptions) ([]StoredRecord, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	records, err := s.Retrieve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if records == nil {
		records = []StoredRecord{}
	}
	return records, nil
}
