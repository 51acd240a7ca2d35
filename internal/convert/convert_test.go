// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// fakeConverter implements Converter for testing. It returns canned Markdown
// or an error, depending on configuration.
type fakeConverter struct {
	output string
	err    error
}

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// setupDocument stores a minimal PDF and returns its Document and the data dir.
func setupDocument(t *testing.T, name string) (*types.Document, string) {
	t.Helper()
	dataDir := t.TempDir()
	doc, err := ImportPDF(dataDir, name, strings.NewReader("%PDF-1.7\n"+name))
	if err != nil {
		t.Fatal(err)
	}
	return doc, dataDir
}

func TestConvertDocument(t *testing.T) {
	tests := []struct {
		name       string
		converter  *fakeConverter
		preCreate  bool // create output MD before running
		wantStatus types.ConversionStatus
		wantLog    string
	}{
		{
			name:       "successful conversion",
			converter:  &fakeConverter{output: "| Name | DOB |\n|---|---|\n| NGUYEN VAN A | 1970 |"},
			wantStatus: types.ConversionDone,
			wantLog:    "converted:",
		},
		{
			name:       "skip existing markdown",
			converter:  &fakeConverter{output: "should not be called"},
			preCreate:  true,
			wantStatus: ConversionSkipped,
			wantLog:    "skipped:",
		},
		{
			name:       "conversion failure",
			converter:  &fakeConverter{err: errors.New("container crashed")},
			wantStatus: types.ConversionFailed,
			wantLog:    "failed:",
		},
		{
			name:       "empty output",
			converter:  &fakeConverter{output: "  \n"},
			wantStatus: types.ConversionFailed,
			wantLog:    "no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, dataDir := setupDocument(t, "202501578.pdf")

			if tt.preCreate {
				mdPath := MarkdownPath(dataDir, doc.ID)
				if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(mdPath, []byte("existing"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			var log bytes.Buffer
			status := ConvertDocument(context.Background(), tt.converter, doc, dataDir, &log)

			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if !strings.Contains(log.String(), tt.wantLog) {
				t.Errorf("log output %q does not contain %q", log.String(), tt.wantLog)
			}
			if tt.wantStatus == types.ConversionFailed && doc.Error == "" {
				t.Error("failed conversion should record an error on the document")
			}
		})
	}
}

func TestConvertDocument_Frontmatter(t *testing.T) {
	doc, dataDir := setupDocument(t, "eu-sanctions.pdf")
	conv := &fakeConverter{output: "# Annex I\n\nSome content."}

	var log bytes.Buffer
	status := ConvertDocument(context.Background(), conv, doc, dataDir, &log)
	if status != types.ConversionDone {
		t.Fatalf("expected ConversionDone, got %q", status)
	}

	data, err := os.ReadFile(doc.MarkdownPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "---\n") {
		t.Error("output should start with YAML frontmatter delimiter")
	}
	if !strings.Contains(content, `document_id: "`+doc.ID+`"`) {
		t.Error("frontmatter should contain document_id")
	}
	if !strings.Contains(content, `source_file: "eu-sanctions.pdf"`) {
		t.Error("frontmatter should contain source_file")
	}
	if !strings.Contains(content, `converted_at:`) {
		t.Error("frontmatter should contain converted_at")
	}

	header, body := SplitFrontmatter(content)
	if !strings.Contains(header, "document_id") {
		t.Errorf("header = %q, want document_id", header)
	}
	if !strings.HasPrefix(body, "# Annex I") {
		t.Errorf("body = %q, want original Markdown", body)
	}
}

func TestConvertBatch(t *testing.T) {
	dataDir := t.TempDir()

	var docs []*types.Document
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		doc, err := ImportPDF(dataDir, name, strings.NewReader("%PDF-1.4 "+name))
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, doc)
	}

	// Pre-create output for "b" to trigger skip.
	bPath := MarkdownPath(dataDir, docs[1].ID)
	if err := os.MkdirAll(filepath.Dir(bPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bPath, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	conv := &selectiveConverter{
		outputs: map[string]string{
			docs[0].PDFPath: "# List A",
			docs[1].PDFPath: "# List B",
		},
		errors: map[string]error{
			docs[2].PDFPath: errors.New("bad pdf"),
		},
	}

	var log bytes.Buffer
	result := ConvertBatch(context.Background(), conv, docs, dataDir, &log)

	if result.Converted != 1 {
		t.Errorf("converted = %d, want 1", result.Converted)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if !result.HasFailures() {
		t.Error("HasFailures should be true")
	}
	if result.Total() != 3 {
		t.Errorf("total = %d, want 3", result.Total())
	}
	if !strings.Contains(log.String(), "Batch summary:") {
		t.Error("batch output should contain summary line")
	}
}

func TestImportPDF(t *testing.T) {
	dataDir := t.TempDir()

	doc, err := ImportPDF(dataDir, "/tmp/uploads/UN List 2025.pdf", strings.NewReader("%PDF-1.7 body"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(doc.ID, "un-list-2025-") {
		t.Errorf("ID = %q, want un-list-2025- prefix", doc.ID)
	}
	if doc.FileName != "UN List 2025.pdf" {
		t.Errorf("FileName = %q", doc.FileName)
	}
	if _, err := os.Stat(doc.PDFPath); err != nil {
		t.Errorf("stored PDF missing: %v", err)
	}

	again, err := ImportPDF(dataDir, "UN List 2025.pdf", strings.NewReader("%PDF-1.7 body"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != doc.ID {
		t.Errorf("re-import ID = %q, want %q", again.ID, doc.ID)
	}

	_, err = ImportPDF(dataDir, "notes.pdf", strings.NewReader("just text"))
	if !errors.Is(err, types.ErrNotPDF) {
		t.Errorf("err = %v, want ErrNotPDF", err)
	}
	if !errors.Is(err, types.ErrBadParameter) {
		t.Errorf("err = %v, want ErrBadParameter", err)
	}
}

func TestImportPaths(t *testing.T) {
	src := t.TempDir()
	good := filepath.Join(src, "good.pdf")
	bad := filepath.Join(src, "bad.pdf")
	if err := os.WriteFile(good, []byte("%PDF-1.5"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	var log bytes.Buffer
	docs := ImportPaths(t.TempDir(), []string{good, bad, filepath.Join(src, "missing.pdf")}, &log)
	if len(docs) != 1 {
		t.Fatalf("imported %d documents, want 1", len(docs))
	}
	if strings.Count(log.String(), "failed:") != 2 {
		t.Errorf("log = %q, want two failures", log.String())
	}
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		fileName   string
		wantPrefix string
	}{
		{"202501578.pdf", "202501578-"},
		{"Annex_I (rev 2).pdf", "annex-i-rev-2-"},
		{"___.pdf", "document-"},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			got := DocumentID(tt.fileName, []byte("x"))
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("DocumentID(%q) = %q, want prefix %q", tt.fileName, got, tt.wantPrefix)
			}
			if len(got) != len(tt.wantPrefix)+8 {
				t.Errorf("DocumentID(%q) = %q, want 8 hex suffix", tt.fileName, got)
			}
		})
	}
}

func TestSplitFrontmatter_None(t *testing.T) {
	header, body := SplitFrontmatter("# plain")
	if header != "" || body != "# plain" {
		t.Errorf("got (%q, %q)", header, body)
	}
}

func TestNew(t *testing.T) {
	c, err := New(types.ConversionConfig{Backend: types.BackendPDFText})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(PDFTextConverter); !ok {
		t.Errorf("got %T, want PDFTextConverter", c)
	}

	if _, err := New(types.ConversionConfig{Backend: "ocr"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// selectiveConverter returns different results per file path.
type selectiveConverter struct {
	outputs map[string]string
	errors  map[string]error
}

func (s *selectiveConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	if err, ok := s.errors[pdfPath]; ok {
		return "", err
	}
	if out, ok := s.outputs[pdfPath]; ok {
		return out, nil
	}
	return "", errors.New("unexpected path: " + pdfPath)
}
