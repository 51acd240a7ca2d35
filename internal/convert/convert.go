// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns uploaded sanctions PDFs into Markdown with
// pluggable backends.
package convert

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/sanctions-engine/internal/httputil"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const (
	// markdownDir is the subdirectory under the data dir for Markdown output.
	markdownDir = "markdown"
	// rawDir is the subdirectory under the data dir for stored PDFs.
	rawDir = "raw"
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Converter transforms a PDF file into Markdown text. Different backends
// (markitdown, pdftext) implement this interface.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns the Markdown content.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any documents failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConversionSkipped is the status returned when the Markdown already exists.
const ConversionSkipped = types.ConversionNone

// MarkdownPath returns where the Markdown for document id is written.
func MarkdownPath(dataDir, id string) string {
	return filepath.Join(dataDir, markdownDir, id+".md")
}

// DocumentID derives a stable identifier from the file name and content:
// a slug of the base name plus the first 8 hex chars of the content hash.
func DocumentID(fileName string, content []byte) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s-%x", slug(base), sum[:4])
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "document"
	}
	return out
}

// ImportPDF stores the PDF read from r under dataDir/raw/ and returns its
// Document. Content that does not start with the PDF signature is rejected
// with types.ErrNotPDF. Importing identical content twice is idempotent, and
// the file is replaced atomically so a concurrent reader never sees it
// truncated.
func ImportPDF(dataDir, fileName string, r io.Reader) (*types.Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileName, err)
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, fmt.Errorf("%s: %w", fileName, types.ErrNotPDF)
	}

	id := DocumentID(fileName, content)
	pdfPath := filepath.Join(dataDir, rawDir, id+".pdf")
	if err := httputil.WriteFileAtomic(pdfPath, content); err != nil {
		return nil, fmt.Errorf("writing %s: %w", pdfPath, err)
	}

	return &types.Document{
		ID:               id,
		FileName:         filepath.Base(fileName),
		PDFPath:          pdfPath,
		SizeBytes:        int64(len(content)),
		UploadedAt:       time.Now().UTC(),
		ConversionStatus: types.ConversionNone,
		ExtractionStatus: types.ExtractionNone,
	}, nil
}

// ImportPaths imports PDFs from local paths. Files that cannot be imported
// are reported on w and left out of the result.
func ImportPaths(dataDir string, pdfPaths []string, w io.Writer) []*types.Document {
	docs := make([]*types.Document, 0, len(pdfPaths))
	for _, p := range pdfPaths {
		f, err := os.Open(p)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", filepath.Base(p), err)
			continue
		}
		doc, err := ImportPDF(dataDir, p, f)
		f.Close()
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", filepath.Base(p), err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// ConvertDocument converts a single PDF to Markdown, writing the result to
// dataDir/markdown/<id>.md and updating doc. If the Markdown output already
// exists, it skips conversion and returns ConversionSkipped.
func ConvertDocument(ctx context.Context, c Converter, doc *types.Document, dataDir string, w io.Writer) types.ConversionStatus {
	mdPath := MarkdownPath(dataDir, doc.ID)

	if _, err := os.Stat(mdPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", doc.ID)
		doc.MarkdownPath = mdPath
		doc.ConversionStatus = types.ConversionDone
		return ConversionSkipped
	}

	fail := func(err error) types.ConversionStatus {
		fmt.Fprintf(w, "failed:  %s (%v)\n", doc.ID, err)
		doc.ConversionStatus = types.ConversionFailed
		doc.Error = err.Error()
		return types.ConversionFailed
	}

	raw, err := c.Convert(ctx, doc.PDFPath)
	if err != nil {
		return fail(err)
	}
	if strings.TrimSpace(raw) == "" {
		return fail(fmt.Errorf("converter produced no text for %s", doc.FileName))
	}

	if err := httputil.WriteFileAtomic(mdPath, []byte(addFrontmatter(doc, raw))); err != nil {
		return fail(err)
	}

	doc.MarkdownPath = mdPath
	doc.ConversionStatus = types.ConversionDone
	doc.Error = ""
	fmt.Fprintf(w, "converted: %s\n", doc.ID)
	return types.ConversionDone
}

// ConvertBatch processes documents through the converter, printing
// per-file status to w and returning a summary.
func ConvertBatch(ctx context.Context, c Converter, docs []*types.Document, dataDir string, w io.Writer) BatchResult {
	var result BatchResult
	for _, d := range docs {
		switch ConvertDocument(ctx, c, d, dataDir, w) {
		case types.ConversionDone:
			result.Converted++
		case ConversionSkipped:
			result.Skipped++
		case types.ConversionFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown content.
func addFrontmatter(doc *types.Document, body string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "document_id: %q\n", doc.ID)
	fmt.Fprintf(&b, "source_file: %q\n", doc.FileName)
	fmt.Fprintf(&b, "source_pdf: %q\n", doc.PDFPath)
	fmt.Fprintf(&b, "converted_at: %q\n", ts)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// Frontmatter is the metadata header written by ConvertDocument.
type Frontmatter struct {
	DocumentID  string `yaml:"document_id"`
	SourceFile  string `yaml:"source_file"`
	SourcePDF   string `yaml:"source_pdf"`
	ConvertedAt string `yaml:"converted_at"`
}

// SplitFrontmatter separates the YAML frontmatter block from the Markdown
// body. Content without frontmatter is returned unchanged with an empty header.
func SplitFrontmatter(content string) (header, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return "", content
	}
	return rest[:end], strings.TrimLeft(rest[end+len("\n---\n"):], "\n")
}
