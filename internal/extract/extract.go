// Package extract turns converted sanctions documents into canonical records
// using a Generative AI backend that answers in CSV.
package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sanctions-engine/internal/convert"
	"github.com/pdiddy/sanctions-engine/internal/httputil"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const (
	markdownDir  = "markdown"
	extractedDir = "extracted"
)

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each call handles one whole Markdown document and returns the raw answer.
type AIBackend interface {
	Extract(ctx context.Context, markdown []byte) (string, error)
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
	Records   int
}

// Total returns the number of documents processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any documents failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// ResultPath returns where the extraction result for document id is written.
func ResultPath(dataDir, id string) string {
	return filepath.Join(dataDir, extractedDir, id+"-records.yaml")
}

// ExtractAll processes all Markdown files in dataDir/markdown/, extracts
// records via the AI backend, and writes results to dataDir/extracted/.
// It skips unchanged files and re-extracts changed ones.
func ExtractAll(ctx context.Context, backend AIBackend, cfg types.ExtractionConfig, w io.Writer) (BatchSummary, error) {
	mdDir := filepath.Join(cfg.DataDir, markdownDir)
	outDir := filepath.Join(cfg.DataDir, extractedDir)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("creating output directory: %w", err)
	}

	entries, err := os.ReadDir(mdDir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("reading markdown directory %s: %w", mdDir, err)
	}

	var summary BatchSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		docID := strings.TrimSuffix(entry.Name(), ".md")
		mdPath := filepath.Join(mdDir, entry.Name())
		outPath := ResultPath(cfg.DataDir, docID)

		changed, err := hasChanged(mdPath, outPath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		if !changed {
			fmt.Fprintf(w, "skipped %s\n", docID)
			summary.Skipped++
			continue
		}

		fmt.Fprintf(w, "extracting %s\n", docID)

		result, err := ExtractFile(ctx, backend, docID, mdPath, cfg)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		if err := WriteResult(outPath, result); err != nil {
			fmt.Fprintf(w, "failed  %s: write error: %v\n", docID, err)
			summary.Failed++
			continue
		}

		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
		fmt.Fprintf(w, "extracted %s (%d records)\n", docID, len(result.Records))
		summary.Extracted++
		summary.Records += len(result.Records)
	}

	return summary, nil
}

// ExtractDocument extracts records for a converted document and writes the
// result next to the other extraction outputs.
func ExtractDocument(ctx context.Context, backend AIBackend, doc *types.Document, cfg types.ExtractionConfig) (*types.ExtractionResult, error) {
	if doc.MarkdownPath == "" {
		return nil, fmt.Errorf("document %s has not been converted", doc.ID)
	}
	result, err := ExtractFile(ctx, backend, doc.ID, doc.MarkdownPath, cfg)
	if err != nil {
		doc.ExtractionStatus = types.ExtractionFailed
		doc.Error = err.Error()
		return nil, err
	}
	if result.SourceFile == "" {
		result.SourceFile = doc.FileName
		stampSource(result.Records, doc.FileName)
	}
	if err := WriteResult(ResultPath(cfg.DataDir, doc.ID), result); err != nil {
		return nil, err
	}
	doc.ExtractionStatus = types.ExtractionDone
	doc.RecordCount = len(result.Records)
	return result, nil
}

// ExtractFile extracts records from one Markdown file. The frontmatter is
// stripped before the body is sent; its source_file stamps Source_File.
func ExtractFile(ctx context.Context, backend AIBackend, docID, mdPath string, cfg types.ExtractionConfig) (*types.ExtractionResult, error) {
	content, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, fmt.Errorf("reading markdown %s: %w", mdPath, err)
	}

	header, body := convert.SplitFrontmatter(string(content))
	var fm convert.Frontmatter
	if header != "" {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return nil, fmt.Errorf("parsing frontmatter of %s: %w", mdPath, err)
		}
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("markdown %s has no content", mdPath)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	answer, err := callWithRetry(ctx, backend, []byte(body), maxRetries)
	if err != nil {
		return nil, err
	}

	records, warnings, err := ParseRecords(CleanCSV(answer))
	if err != nil {
		return nil, fmt.Errorf("parsing AI response: %w", err)
	}
	stampSource(records, fm.SourceFile)

	return &types.ExtractionResult{
		DocumentID:  docID,
		SourceFile:  fm.SourceFile,
		Model:       cfg.Model,
		ExtractedAt: time.Now().UTC(),
		Records:     records,
		Warnings:    warnings,
	}, nil
}

func stampSource(records []types.Record, source string) {
	if source == "" {
		return
	}
	for i := range records {
		records[i].SourceFile = source
	}
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the AI backend with exponential backoff.
func callWithRetry(ctx context.Context, backend AIBackend, markdown []byte, maxRetries int) (string, error) {
	var answer string
	err := retry.Do(
		func() error {
			var err error
			answer, err = backend.Extract(ctx, markdown)
			return err
		},
		retry.Attempts(uint(maxRetries)+1),
		retry.Delay(backoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("after %d retries: %w", maxRetries, err)
	}
	return answer, nil
}

// hasChanged reports whether the Markdown file is newer than the output file.
// Returns true if the output does not exist or the Markdown is more recent.
func hasChanged(mdPath, outPath string) (bool, error) {
	mdInfo, err := os.Stat(mdPath)
	if err != nil {
		return false, fmt.Errorf("stat markdown %s: %w", mdPath, err)
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat output %s: %w", outPath, err)
	}

	return mdInfo.ModTime().After(outInfo.ModTime()), nil
}

// WriteResult marshals the ExtractionResult to a YAML file.
func WriteResult(path string, result *types.ExtractionResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	return httputil.WriteFileAtomic(path, data)
}

// ReadResult loads an ExtractionResult written by WriteResult.
func ReadResult(path string) (*types.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var result types.ExtractionResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &result, nil
}

// LoadResults reads every extraction result under dataDir/extracted/ in
// file name order.
func LoadResults(dataDir string) ([]*types.ExtractionResult, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, extractedDir, "*-records.yaml"))
	if err != nil {
		return nil, err
	}
	results := make([]*types.ExtractionResult, 0, len(paths))
	for _, p := range paths {
		r, err := ReadResult(p)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
