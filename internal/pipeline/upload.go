// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/convert"
	"github.com/pdiddy/sanctions-engine/internal/extract"
	"github.com/pdiddy/sanctions-engine/internal/metrics"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// UploadResult is the outcome of processing one uploaded PDF.
type UploadResult struct {
	Document    *types.Document `json:"document"`
	Records     []types.Record  `json:"records"`
	Warnings    []string        `json:"warnings,omitempty"`
	Individuals int             `json:"individuals"`
	Entities    int             `json:"entities"`
	Matches     []types.Match   `json:"matches,omitempty"`

	// Cached is true when records came from an earlier extraction of the
	// same file.
	Cached bool `json:"cached"`
}

// ProcessUpload stores the PDF read from r, converts and extracts it,
// persists the records and screens them against the stored lists. It
// fails with types.ErrGeminiNotConfigured when no AI backend is set and the
// file has not been extracted before.
func (s *Service) ProcessUpload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	doc, err := convert.ImportPDF(s.cfg.DataDir, name, r)
	if err != nil {
		return nil, err
	}

	shared, err := s.processOnce(ctx, doc, true)
	if err != nil {
		return nil, err
	}

	res := *shared
	res.Matches, err = s.Screen(ctx, res.Records)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// processOnce runs processDocument once per document ID at a time. Callers
// that arrive while the ID is in flight share the first caller's result,
// which they must not modify.
func (s *Service) processOnce(ctx context.Context, doc *types.Document, requireAI bool) (*UploadResult, error) {
	v, err, shared := s.docs.Do(doc.ID, func() (any, error) {
		return s.processDocument(ctx, doc, requireAI)
	})
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight processing", "document", doc.ID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*UploadResult), nil
}

// processDocument converts, extracts and persists doc. When requireAI is
// false a missing backend marks the document skipped instead of failing.
func (s *Service) processDocument(ctx context.Context, doc *types.Document, requireAI bool) (*UploadResult, error) {
	logger := s.logger.With("document", doc.ID, "file", doc.FileName)

	start := s.now()
	status := convert.ConvertDocument(ctx, s.converter, doc, s.cfg.DataDir, logWriter{ctx, logger, "convert"})
	switch status {
	case types.ConversionFailed:
		s.metrics.ObserveStage("convert", start, metrics.OutcomeFailed)
		s.saveDocument(ctx, doc)
		return nil, errors.Newf("converting %s: %s", doc.FileName, doc.Error)
	case convert.ConversionSkipped:
		s.metrics.ObserveStage("convert", start, metrics.OutcomeSkipped)
	default:
		s.metrics.ObserveStage("convert", start, metrics.OutcomeOK)
	}

	res := &UploadResult{Document: doc}

	resultPath := extract.ResultPath(s.cfg.DataDir, doc.ID)
	if cached, ok := cachedResult(resultPath, doc.MarkdownPath); ok {
		res.Records = cached.Records
		res.Warnings = cached.Warnings
		res.Cached = true
		doc.ExtractionStatus = types.ExtractionDone
		doc.RecordCount = len(cached.Records)
		logger.InfoContext(ctx, "reusing earlier extraction", "records", len(cached.Records))
	} else if s.backend == nil {
		doc.ExtractionStatus = types.ExtractionSkipped
		s.metrics.ObserveStage("extract", start, metrics.OutcomeSkipped)
		s.saveDocument(ctx, doc)
		if requireAI {
			return nil, types.ErrGeminiNotConfigured
		}
		logger.WarnContext(ctx, "extraction skipped, Gemini not configured")
		return res, nil
	} else {
		start = s.now()
		result, err := extract.ExtractDocument(ctx, s.backend, doc, s.cfg.Extraction)
		if err != nil {
			s.metrics.ObserveStage("extract", start, metrics.OutcomeFailed)
			s.saveDocument(ctx, doc)
			return nil, errors.Wrapf(err, "extracting %s", doc.FileName)
		}
		s.metrics.ObserveStage("extract", start, metrics.OutcomeOK)
		s.metrics.RecordsExtracted.Add(float64(len(result.Records)))
		res.Records = result.Records
		res.Warnings = result.Warnings
		for _, w := range result.Warnings {
			logger.WarnContext(ctx, "extraction warning", "warning", w)
		}
	}

	doc.Error = ""
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceRecords(ctx, store.DocumentSource(doc.ID), "", res.Records); err != nil {
		return nil, err
	}

	res.Individuals, res.Entities = consolidate.CountTypes(res.Records)
	logger.InfoContext(ctx, "document processed",
		"records", len(res.Records), "individuals", res.Individuals, "entities", res.Entities)
	return res, nil
}

// cachedResult returns an extraction result that is at least as new as
// the Markdown it was extracted from.
func cachedResult(resultPath, mdPath string) (*types.ExtractionResult, bool) {
	out, err := os.Stat(resultPath)
	if err != nil {
		return nil, false
	}
	if md, err := os.Stat(mdPath); err == nil && md.ModTime().After(out.ModTime()) {
		return nil, false
	}
	result, err := extract.ReadResult(resultPath)
	if err != nil {
		return nil, false
	}
	return result, true
}

// saveDocument persists a document whose processing failed; errors are
// logged because the caller is already returning the processing error.
func (s *Service) saveDocument(ctx context.Context, doc *types.Document) {
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.logger.ErrorContext(ctx, "saving document", "document", doc.ID, "error", err)
	}
}
