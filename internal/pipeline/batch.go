// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/convert"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// Upload is one input file of a batch.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileUpload reads the upload from a local path.
func FileUpload(path string) Upload {
	return Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesUpload serves the upload from memory.
func BytesUpload(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// BatchOptions selects which external lists join the batch.
type BatchOptions struct {
	IncludeOFAC bool
	IncludeUN   bool
}

// BatchResult is a finished batch: the persisted run and its consolidated
// records.
type BatchResult struct {
	Run     types.BatchRun
	Records []types.Record
}

// Batch failure stages.
const (
	StageImport  = "import"
	StageProcess = "process"
	StageOFAC    = "ofac"
	StageUN      = "un"
)

type fileOutcome struct {
	name    string
	records []types.Record
	stage   string
	err     error
}

// RunBatch processes uploads concurrently, appends the requested lists,
// consolidates everything and stores the run. A file or list that fails is
// recorded in the run's failures and left out; the batch itself fails only
// when ctx is cancelled or the run cannot be stored.
func (s *Service) RunBatch(ctx context.Context, uploads []Upload, opts BatchOptions) (*BatchResult, error) {
	if len(uploads) == 0 && !opts.IncludeOFAC && !opts.IncludeUN {
		return nil, types.ErrNoFiles
	}

	run := types.BatchRun{
		ID:        uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With("batch", run.ID)
	logger.InfoContext(ctx, "batch started", "files", len(uploads),
		"ofac", opts.IncludeOFAC, "un", opts.IncludeUN)

	outcomes := make([]fileOutcome, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range uploads {
		g.Go(func() error {
			outcomes[i] = s.processUpload(gctx, u)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "batch cancelled")
	}

	var sources []consolidate.Source
	for _, o := range outcomes {
		if o.err != nil {
			logger.WarnContext(ctx, "file failed", "file", o.name, "stage", o.stage, "error", o.err)
			run.Failures = append(run.Failures, types.FileFailure{
				FileName: o.name, Stage: o.stage, Error: o.err.Error(),
			})
			continue
		}
		sources = append(sources, consolidate.PDFSource(o.name, o.records))
	}

	if opts.IncludeOFAC {
		if res, err := s.RefreshOFAC(ctx); err != nil {
			run.Failures = append(run.Failures, types.FileFailure{
				FileName: types.SourceOFAC, Stage: StageOFAC, Error: err.Error(),
			})
		} else {
			sources = append(sources, consolidate.OFACSource(res.Records))
		}
	}
	if opts.IncludeUN {
		if res, err := s.RefreshUN(ctx); err != nil {
			run.Failures = append(run.Failures, types.FileFailure{
				FileName: types.SourceUN, Stage: StageUN, Error: err.Error(),
			})
		} else {
			sources = append(sources, consolidate.UNSource(res.Records))
		}
	}

	result := consolidate.Consolidate(sources, consolidate.Options{
		Countries:      s.countries,
		FilesProcessed: len(uploads),
	})

	run.Summary = result.Summary
	run.FinishedAt = s.now().UTC()
	if err := s.store.SaveBatch(ctx, &run, result.Records); err != nil {
		return nil, errors.Wrap(err, "saving batch")
	}

	logger.InfoContext(ctx, "batch finished",
		"records", result.Summary.TotalRecords,
		"duplicates_removed", result.Summary.DuplicatesRemoved,
		"failures", len(run.Failures),
		"duration", run.FinishedAt.Sub(run.StartedAt))

	return &BatchResult{Run: run, Records: result.Records}, nil
}

func (s *Service) processUpload(ctx context.Context, u Upload) fileOutcome {
	out := fileOutcome{name: u.Name}

	rc, err := u.Open()
	if err != nil {
		out.stage, out.err = StageImport, err
		return out
	}
	doc, err := convert.ImportPDF(s.cfg.DataDir, u.Name, rc)
	rc.Close()
	if err != nil {
		out.stage, out.err = StageImport, err
		return out
	}

	res, err := s.processOnce(ctx, doc, false)
	if err != nil {
		out.stage, out.err = StageProcess, err
		return out
	}
	out.records = res.Records
	return out
}
