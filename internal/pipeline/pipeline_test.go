// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sanctions-engine/internal/metrics"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const sampleCSV = `Name,Aliases,Type,Date of Birth,Place of Birth,Gender,Nationality,COUNTRY,ID_1,ID_Type1,ID_2,ID_Type2,Date of listing,Watchlist,Other info,DOB_DJ,DOB_YEAR
IVANOV Petr,Pyotr Ivanov,Individual,12.03.1971,Moscow,Male,Russian,Russia,1234567,Passport,None,None,2025-05-20,2025/1578,None,12 Mar 1971,1971
LLC Alfa,None,Entity,None,None,None,None,Russia,7701234567,INN,None,None,2025-05-20,2025/1578,None,None,None
`

// --- fakes ---

type fakeConverter struct {
	markdown string
	err      error
	delay    time.Duration

	calls atomic.Int32
}

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	time.Sleep(f.delay)
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("pdf truncated: %d bytes", len(data))
	}
	return f.markdown + "\n<!-- " + pdfPath + " -->\n", nil
}

type fakeBackend struct {
	answer string
	delay  time.Duration

	calls   atomic.Int32
	mu      sync.Mutex
	running int
	peak    int
}

func (f *fakeBackend) Extract(ctx context.Context, _ []byte) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.running++
	f.peak = max(f.peak, f.running)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, nil
}

type fakeList struct {
	source  types.ListSource
	records []types.Record
	err     error
	calls   int
}

func (f *fakeList) FetchRecords(context.Context) ([]types.Record, types.ListSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, types.ListSnapshot{}, f.err
	}
	return f.records, types.ListSnapshot{
		Source:      f.source,
		URL:         "https://lists.example/" + strings.ToLower(string(f.source)),
		FetchedAt:   time.Now().UTC(),
		RecordCount: len(f.records),
	}, nil
}

func ofacList() *fakeList {
	return &fakeList{source: types.ListOFAC, records: []types.Record{
		{Name: "IVANOV Petr", Type: types.TypeIndividual, Country: "RU", Watchlist: types.WatchlistOFACSDN, SourceFile: types.SourceOFAC},
		{Name: "SEA BREEZE SHIPPING", Type: types.TypeEntity, Watchlist: types.WatchlistOFACSDN, SourceFile: types.SourceOFAC},
	}}
}

func unList() *fakeList {
	return &fakeList{source: types.ListUN, records: []types.Record{
		{Name: "KIM SONG IL", Type: types.TypeIndividual, Watchlist: types.WatchlistUN, SourceFile: types.SourceUN},
	}}
}

type fixture struct {
	svc     *Service
	store   *store.Store
	backend *fakeBackend
	conv    *fakeConverter
	ofac    *fakeList
	un      *fakeList
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, withBackend bool) *fixture {
	t.Helper()
	dataDir := t.TempDir()

	cfg := types.PipelineConfig{DataDir: dataDir, Concurrency: 2}
	cfg.Defaults()

	st, err := store.NewStore(cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:   st,
		backend: &fakeBackend{answer: sampleCSV},
		conv:    &fakeConverter{markdown: "# COUNCIL IMPLEMENTING REGULATION (EU) 2025/1578"},
		ofac:    ofacList(),
		un:      unList(),
		metrics: metrics.New(),
	}
	deps := Deps{
		Converter: f.conv,
		OFAC:      f.ofac,
		UN:        f.un,
		Store:     st,
		Metrics:   f.metrics,
	}
	if withBackend {
		deps.Backend = f.backend
	}
	f.svc, err = New(cfg, deps)
	require.NoError(t, err)
	return f
}

func pdf(body string) []byte {
	return []byte("%PDF-1.7\n" + body)
}

// --- tests ---

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(types.PipelineConfig{}, Deps{})
	assert.Error(t, err)
}

func TestProcessUpload(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.RefreshOFAC(ctx)
	require.NoError(t, err)

	res, err := f.svc.ProcessUpload(ctx, "202501578_annex.pdf", bytes.NewReader(pdf("annex")))
	require.NoError(t, err)

	assert.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Individuals)
	assert.Equal(t, 1, res.Entities)
	assert.False(t, res.Cached)
	assert.Equal(t, "202501578_annex.pdf", res.Records[0].SourceFile)
	assert.Equal(t, types.ExtractionDone, res.Document.ExtractionStatus)

	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "IVANOV Petr", res.Matches[0].Listed.Name)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-9)

	doc, err := f.store.Document(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.RecordCount)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PDFRecords)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RecordsExtracted))
}

func TestProcessUploadReusesExtraction(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.ProcessUpload(ctx, "list.pdf", bytes.NewReader(pdf("same")))
	require.NoError(t, err)
	res, err := f.svc.ProcessUpload(ctx, "list.pdf", bytes.NewReader(pdf("same")))
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, int32(1), f.backend.calls.Load())
}

func TestProcessUploadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not a pdf", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.svc.ProcessUpload(ctx, "notes.txt", strings.NewReader("hello"))
		assert.ErrorIs(t, err, types.ErrNotPDF)
		assert.ErrorIs(t, err, types.ErrBadParameter)
	})

	t.Run("gemini not configured", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.ProcessUpload(ctx, "list.pdf", bytes.NewReader(pdf("x")))
		assert.ErrorIs(t, err, types.ErrGeminiNotConfigured)

		docs, err := f.store.Documents(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, types.ExtractionSkipped, docs[0].ExtractionStatus)
	})

	t.Run("conversion fails", func(t *testing.T) {
		f := newFixture(t, true)
		f.conv.err = errors.New("no text layer")
		_, err := f.svc.ProcessUpload(ctx, "scan.pdf", bytes.NewReader(pdf("x")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no text layer")

		docs, err := f.store.Documents(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, types.ConversionFailed, docs[0].ConversionStatus)
		assert.Equal(t, int32(0), f.backend.calls.Load())
	})
}

func TestRefreshLists(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.RefreshOFAC(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	res, err = f.svc.RefreshUN(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ListUN, res.Snapshot.Source)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OFACRecords)
	assert.Equal(t, 1, stats.UNRecords)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ListRecords.WithLabelValues("OFAC")))

	f.un.err = errors.New("page moved")
	_, err = f.svc.RefreshUN(ctx)
	assert.ErrorContains(t, err, "page moved")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ListRefreshes.WithLabelValues("UN", metrics.OutcomeFailed)))

	// A failed refresh keeps the previous set.
	stats, err = f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UNRecords)
}

func TestRefreshWithoutClient(t *testing.T) {
	f := newFixture(t, false)
	f.svc.un = nil
	_, err := f.svc.RefreshUN(context.Background())
	assert.Error(t, err)
}

func TestRunBatch(t *testing.T) {
	f := newFixture(t, true)
	f.un.err = errors.New("UN site unavailable")
	ctx := context.Background()

	uploads := []Upload{
		BytesUpload("202501578_a.pdf", pdf("a")),
		BytesUpload("bad.pdf", []byte("not a pdf")),
		BytesUpload("202501578_b.pdf", pdf("b")),
	}
	res, err := f.svc.RunBatch(ctx, uploads, BatchOptions{IncludeOFAC: true, IncludeUN: true})
	require.NoError(t, err)

	sum := res.Run.Summary
	// Two PDFs yield the same two names; OFAC repeats IVANOV and adds one.
	assert.Equal(t, 3, sum.TotalRecords)
	assert.Equal(t, 3, sum.DuplicatesRemoved)
	assert.Equal(t, 3, sum.FilesProcessed)
	assert.Equal(t, 2, sum.RecordsBySource["202501578_a.pdf"])
	assert.Equal(t, 1, sum.RecordsBySource[types.SourceOFAC])
	assert.Equal(t, 2, sum.ByWatchlist["2025/1578"])

	require.Len(t, res.Run.Failures, 2)
	assert.Equal(t, "bad.pdf", res.Run.Failures[0].FileName)
	assert.Equal(t, StageImport, res.Run.Failures[0].Stage)
	assert.Equal(t, types.SourceUN, res.Run.Failures[1].FileName)
	assert.Equal(t, StageUN, res.Run.Failures[1].Stage)

	names := make([]string, len(res.Records))
	for i, r := range res.Records {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"IVANOV Petr", "LLC Alfa", "SEA BREEZE SHIPPING"}, names)

	stored, err := f.store.Batch(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Summary.TotalRecords)
	assert.Len(t, stored.Failures, 2)
}

func TestRunBatchConcurrencyLimit(t *testing.T) {
	f := newFixture(t, true)
	f.backend.delay = 20 * time.Millisecond

	var uploads []Upload
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		uploads = append(uploads, BytesUpload(n+".pdf", pdf(n)))
	}
	res, err := f.svc.RunBatch(context.Background(), uploads, BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(5), f.backend.calls.Load())
	assert.LessOrEqual(t, f.backend.peak, 2)
	assert.Empty(t, res.Run.Failures)
	assert.Equal(t, 5, res.Run.Summary.FilesProcessed)
}

func TestRunBatchWithoutGemini(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.svc.RunBatch(context.Background(),
		[]Upload{BytesUpload("a.pdf", pdf("a"))}, BatchOptions{IncludeOFAC: true})
	require.NoError(t, err)

	assert.Empty(t, res.Run.Failures)
	assert.Equal(t, 2, res.Run.Summary.TotalRecords)
	assert.Equal(t, 1, res.Run.Summary.FilesProcessed)
}

func TestRunBatchNoInput(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.RunBatch(context.Background(), nil, BatchOptions{})
	assert.ErrorIs(t, err, types.ErrNoFiles)
}

func TestRunBatchOpenError(t *testing.T) {
	f := newFixture(t, true)
	up := Upload{Name: "gone.pdf", Open: func() (io.ReadCloser, error) {
		return nil, errors.New("file vanished")
	}}

	res, err := f.svc.RunBatch(context.Background(), []Upload{up}, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Run.Failures, 1)
	assert.Equal(t, StageImport, res.Run.Failures[0].Stage)
}

func TestRunBatchCancelled(t *testing.T) {
	f := newFixture(t, true)
	f.backend.delay = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RunBatch(ctx, []Upload{BytesUpload("a.pdf", pdf("a"))}, BatchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, false)
	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.GeminiConfigured)
	assert.Nil(t, st.OFAC)
	assert.Equal(t, "markitdown", st.ConverterBackend)

	f = newFixture(t, true)
	_, err = f.svc.RefreshOFAC(ctx)
	require.NoError(t, err)
	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.GeminiConfigured)
	assert.Equal(t, types.DefaultGeminiModel, st.Model)
	require.NotNil(t, st.OFAC)
	assert.Equal(t, 2, st.OFAC.RecordCount)
	assert.Nil(t, st.UN)
	assert.Equal(t, 2, st.TotalRecords)
}

func TestScreenStoredAndConsolidateStored(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.RefreshOFAC(ctx)
	require.NoError(t, err)
	_, err = f.svc.RefreshUN(ctx)
	require.NoError(t, err)
	_, err = f.svc.ProcessUpload(ctx, "a.pdf", bytes.NewReader(pdf("a")))
	require.NoError(t, err)

	matches, err := f.svc.ScreenStored(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "IVANOV Petr", matches[0].Subject.Name)

	res, err := f.svc.ConsolidateStored(ctx, BatchOptions{IncludeOFAC: true, IncludeUN: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Summary.TotalRecords)
	assert.Equal(t, 1, res.Summary.DuplicatesRemoved)
	assert.Equal(t, 1, res.Summary.FilesProcessed)
	assert.Equal(t, 1, res.Summary.ByWatchlist[types.WatchlistUN])
}
