// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionStatus indicates the state of PDF-to-Markdown conversion for a document.
type ConversionStatus string

const (
	ConversionNone   ConversionStatus = "none"
	ConversionDone   ConversionStatus = "converted"
	ConversionFailed ConversionStatus = "failed"
)

// ExtractionStatus indicates the state of AI extraction for a document.
type ExtractionStatus string

const (
	ExtractionNone    ExtractionStatus = "none"
	ExtractionDone    ExtractionStatus = "extracted"
	ExtractionSkipped ExtractionStatus = "skipped"
	ExtractionFailed  ExtractionStatus = "failed"
)

// Document holds metadata and file paths for an uploaded sanctions PDF.
type Document struct {
	// ID is a slug derived from the file name plus a content hash prefix.
	ID string `json:"id" yaml:"id"`

	// FileName is the name the file was uploaded or passed with.
	FileName string `json:"file_name" yaml:"file_name"`

	// PDFPath is the local filesystem path to the stored PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// MarkdownPath is set once conversion succeeds.
	MarkdownPath string `json:"markdown_path,omitempty" yaml:"markdown_path,omitempty"`

	SizeBytes  int64     `json:"size_bytes" yaml:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`

	ConversionStatus ConversionStatus `json:"conversion_status" yaml:"conversion_status"`
	ExtractionStatus ExtractionStatus `json:"extraction_status" yaml:"extraction_status"`

	RecordCount int    `json:"record_count" yaml:"record_count"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ExtractionResult is the output of extracting one document, written to
// extracted/<id>-records.yaml.
type ExtractionResult struct {
	DocumentID  string    `json:"document_id" yaml:"document_id"`
	SourceFile  string    `json:"source_file" yaml:"source_file"`
	Model       string    `json:"model" yaml:"model"`
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`
	Records     []Record  `json:"records" yaml:"records"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
