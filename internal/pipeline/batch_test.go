// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatchDuplicateUploads(t *testing.T) {
	f := newFixture(t, true)
	f.conv.delay = 20 * time.Millisecond
	f.backend.delay = 20 * time.Millisecond

	content := pdf(string(bytes.Repeat([]byte("page "), 1<<16)))
	uploads := []Upload{
		BytesUpload("same.pdf", content),
		BytesUpload("same.pdf", content),
		BytesUpload("same.pdf", content),
	}
	res, err := f.svc.RunBatch(context.Background(), uploads, BatchOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.Run.Failures)
	assert.Equal(t, int32(1), f.conv.calls.Load())
	assert.Equal(t, int32(1), f.backend.calls.Load())
	assert.Equal(t, 3, res.Run.Summary.FilesProcessed)
	assert.Equal(t, 2, res.Run.Summary.TotalRecords)

	raw, err := filepath.Glob(filepath.Join(f.svc.cfg.DataDir, "raw", "*"))
	require.NoError(t, err)
	require.Len(t, raw, 1, "temp files must not be left behind")
	data, err := os.ReadFile(raw[0])
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestProcessUploadConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, true)
	f.conv.delay = 20 * time.Millisecond
	content := pdf("same content")

	results := make(chan *UploadResult, 2)
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			res, err := f.svc.ProcessUpload(context.Background(), "same.pdf", bytes.NewReader(content))
			errs <- err
			results <- res
		}()
	}
	for range 2 {
		require.NoError(t, <-errs)
		res := <-results
		assert.Len(t, res.Records, 2)
	}
	assert.Equal(t, int32(1), f.conv.calls.Load())
	assert.Equal(t, int32(1), f.backend.calls.Load())
}
