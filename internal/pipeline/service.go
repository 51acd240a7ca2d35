// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the processing stages together: PDF import and
// conversion, AI extraction, list refreshes, consolidation, screening and
// persistence.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/convert"
	"github.com/pdiddy/sanctions-engine/internal/extract"
	"github.com/pdiddy/sanctions-engine/internal/metrics"
	"github.com/pdiddy/sanctions-engine/internal/screening"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// ListFetcher downloads and parses one external sanctions list.
type ListFetcher interface {
	FetchRecords(ctx context.Context) ([]types.Record, types.ListSnapshot, error)
}

// Deps are the collaborators of a Service. Backend may be nil when no
// Gemini key is configured. Nil Screener, Countries, Metrics and Logger are
// replaced with defaults.
type Deps struct {
	Converter convert.Converter
	Backend   extract.AIBackend
	OFAC      ListFetcher
	UN        ListFetcher
	Store     *store.Store
	Countries *screening.Countries
	Screener  *screening.Screener
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service runs the processing workflows.
type Service struct {
	cfg       types.PipelineConfig
	converter convert.Converter
	backend   extract.AIBackend
	ofac      ListFetcher
	un        ListFetcher
	store     *store.Store
	countries *screening.Countries
	screener  *screening.Screener
	metrics   *metrics.Metrics
	logger    *slog.Logger

	ofacMu sync.Mutex
	unMu   sync.Mutex
	// docs collapses concurrent processing of the same document ID.
	docs singleflight.Group
	now  func() time.Time
}

// New creates a Service. cfg should already have defaults applied.
func New(cfg types.PipelineConfig, deps Deps) (*Service, error) {
	if deps.Converter == nil {
		return nil, errors.New("pipeline: converter is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}

	s := &Service{
		cfg:       cfg,
		converter: deps.Converter,
		backend:   deps.Backend,
		ofac:      deps.OFAC,
		un:        deps.UN,
		store:     deps.Store,
		countries: deps.Countries,
		screener:  deps.Screener,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
	if s.countries == nil {
		s.countries = screening.NewCountries()
	}
	if s.screener == nil {
		s.screener = screening.New(cfg.Screening, s.countries)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cfg.Concurrency <= 0 {
		s.cfg.Concurrency = 3
	}
	return s, nil
}

// Store returns the record store.
func (s *Service) Store() *store.Store { return s.store }

// Metrics returns the service metrics.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// GeminiConfigured reports whether an AI backend is available.
func (s *Service) GeminiConfigured() bool { return s.backend != nil }

// Status describes the system for the dashboard.
type Status struct {
	GeminiConfigured bool                `json:"gemini_configured"`
	Model            string              `json:"model,omitempty"`
	ConverterBackend string              `json:"converter_backend"`
	Stats            store.Stats         `json:"stats"`
	TotalRecords     int                 `json:"total_records"`
	OFAC             *types.ListSnapshot `json:"ofac,omitempty"`
	UN               *types.ListSnapshot `json:"un,omitempty"`
}

// Status returns whether Gemini is configured, the converter backend, the
// store counters and the latest list snapshots.
func (s *Service) Status(ctx context.Context) (Status, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "reading store stats")
	}

	st := Status{
		GeminiConfigured: s.backend != nil,
		ConverterBackend: string(s.cfg.Conversion.Backend),
		Stats:            stats,
		TotalRecords:     stats.TotalRecords(),
	}
	if st.GeminiConfigured {
		st.Model = s.cfg.Extraction.Model
	}
	for src, dest := range map[types.ListSource]**types.ListSnapshot{
		types.ListOFAC: &st.OFAC,
		types.ListUN:   &st.UN,
	} {
		snap, err := s.store.LatestSnapshot(ctx, src)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return Status{}, err
		}
		*dest = &snap
	}
	return st, nil
}

// RefreshResult is the outcome of a list refresh.
type RefreshResult struct {
	Snapshot types.ListSnapshot
	Records  []types.Record
}

// RefreshOFAC fetches the OFAC delta file and replaces the stored OFAC set.
func (s *Service) RefreshOFAC(ctx context.Context) (*RefreshResult, error) {
	s.ofacMu.Lock()
	defer s.ofacMu.Unlock()
	return s.refresh(ctx, types.ListOFAC, s.ofac)
}

// RefreshUN fetches the UN consolidated list and replaces the stored UN set.
func (s *Service) RefreshUN(ctx context.Context) (*RefreshResult, error) {
	s.unMu.Lock()
	defer s.unMu.Unlock()
	return s.refresh(ctx, types.ListUN, s.un)
}

func (s *Service) refresh(ctx context.Context, list types.ListSource, f ListFetcher) (*RefreshResult, error) {
	if f == nil {
		return nil, errors.Newf("%s client not configured", list)
	}
	start := s.now()
	records, snap, err := f.FetchRecords(ctx)
	if err == nil {
		err = s.store.SaveSnapshot(ctx, snap, records)
	}
	s.metrics.ObserveRefresh(string(list), len(records), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "list refresh failed", "list", list, "error", err)
		return nil, errors.Wrapf(err, "refreshing %s", list)
	}
	s.logger.InfoContext(ctx, "list refreshed",
		"list", list, "records", len(records), "duration", time.Since(start))
	return &RefreshResult{Snapshot: snap, Records: records}, nil
}

// ListedRecords returns the stored OFAC and UN records and a key that
// changes whenever either list is refreshed.
func (s *Service) ListedRecords(ctx context.Context) ([]types.Record, string, error) {
	var (
		listed []types.Record
		key    string
	)
	for _, src := range []types.ListSource{types.ListOFAC, types.ListUN} {
		recs, err := s.store.LatestRecords(ctx, string(src))
		if err != nil {
			return nil, "", err
		}
		listed = append(listed, recs...)

		snap, err := s.store.LatestSnapshot(ctx, src)
		switch {
		case err == nil:
			key += fmt.Sprintf("%s@%d/%d;", src, snap.FetchedAt.UnixNano(), snap.RecordCount)
		case errors.Is(err, types.ErrNotFound):
			key += string(src) + "@none;"
		default:
			return nil, "", err
		}
	}
	return listed, key, nil
}

// Screen matches subjects against the stored OFAC and UN records.
func (s *Service) Screen(ctx context.Context, subjects []types.Record) ([]types.Match, error) {
	if len(subjects) == 0 {
		return nil, nil
	}
	listed, key, err := s.ListedRecords(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading listed records")
	}
	matches := s.screener.Screen(subjects, listed, key)
	s.metrics.ScreeningMatches.Add(float64(len(matches)))
	return matches, nil
}

// ScreenStored screens every stored PDF record against the stored lists.
func (s *Service) ScreenStored(ctx context.Context) ([]types.Match, error) {
	subjects, err := s.store.LatestRecords(ctx, store.SourcePDF)
	if err != nil {
		return nil, errors.Wrap(err, "loading PDF records")
	}
	return s.Screen(ctx, subjects)
}

// ConsolidateStored merges the stored PDF records, one source per document
// in upload order, with the stored OFAC and UN sets.
func (s *Service) ConsolidateStored(ctx context.Context, opts BatchOptions) (consolidate.Result, error) {
	docs, err := s.store.Documents(ctx)
	if err != nil {
		return consolidate.Result{}, err
	}

	var sources []consolidate.Source
	for i := len(docs) - 1; i >= 0; i-- {
		doc := docs[i]
		recs, err := s.store.LatestRecords(ctx, store.DocumentSource(doc.ID))
		if err != nil {
			return consolidate.Result{}, err
		}
		if len(recs) > 0 {
			sources = append(sources, consolidate.PDFSource(doc.FileName, recs))
		}
	}

	if opts.IncludeOFAC {
		recs, err := s.store.LatestRecords(ctx, store.SourceOFAC)
		if err != nil {
			return consolidate.Result{}, err
		}
		sources = append(sources, consolidate.OFACSource(recs))
	}
	if opts.IncludeUN {
		recs, err := s.store.LatestRecords(ctx, store.SourceUN)
		if err != nil {
			return consolidate.Result{}, err
		}
		sources = append(sources, consolidate.UNSource(recs))
	}

	return consolidate.Consolidate(sources, consolidate.Options{Countries: s.countries}), nil
}

// logWriter adapts a logger to the io.Writer status-line interface of the
// stage packages.
type logWriter struct {
	ctx    context.Context
	logger *slog.Logger
	stage  string
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := string(p)
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == ' ') {
		msg = msg[:len(msg)-1]
	}
	if msg != "" {
		w.logger.DebugContext(w.ctx, msg, "stage", w.stage)
	}
	return len(p), nil
}

var _ io.Writer = logWriter{}
