// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	stampLayout     = "20060102_150405"
)

func stamp() string {
	return time.Now().Format(stampLayout)
}

// attach writes body as a file download.
func attach(c *gin.Context, name, contentType string, body []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, contentType, body)
}

func (s *Server) sendCSV(c *gin.Context, name string, records []types.Record, withSource bool) {
	var buf bytes.Buffer
	if s.presentError(c, consolidate.WriteCSV(&buf, records, withSource)) {
		return
	}
	attach(c, name, contentTypeCSV, buf.Bytes())
}

func (s *Server) handleDownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := s.svc.Store().Document(ctx, c.Param("id"))
	if s.presentError(c, err) {
		return
	}
	records, err := s.svc.Store().LatestRecords(ctx, store.DocumentSource(doc.ID))
	if s.presentError(c, err) {
		return
	}
	stem := strings.TrimSuffix(doc.FileName, filepath.Ext(doc.FileName))
	s.sendCSV(c, "sanctions_"+stem+"_"+stamp()+".csv", records, false)
}

func (s *Server) handleDownloadList(l list) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.svc.Store().LatestRecords(c.Request.Context(), l.Source)
		if s.presentError(c, err) {
			return
		}
		s.sendCSV(c, l.FilePrefix+"_"+stamp()+".csv", records, false)
	}
}

func (s *Server) batchRecords(c *gin.Context) (*types.BatchRun, []types.Record, bool) {
	ctx := c.Request.Context()
	run, err := s.svc.Store().Batch(ctx, c.Param("id"))
	if s.presentError(c, err) {
		return nil, nil, false
	}
	records, err := s.svc.Store().LatestRecords(ctx, store.BatchSource(run.ID))
	if s.presentError(c, err) {
		return nil, nil, false
	}
	return run, records, true
}

func (s *Server) handleDownloadBatchCSV(c *gin.Context) {
	_, records, ok := s.batchRecords(c)
	if !ok {
		return
	}
	s.sendCSV(c, "consolidated_sanctions_"+stamp()+".csv", records, true)
}

func (s *Server) handleDownloadBatchExcel(c *gin.Context) {
	run, records, ok := s.batchRecords(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if s.presentError(c, consolidate.WriteExcel(&buf, records, run.Summary)) {
		return
	}
	attach(c, "consolidated_sanctions_report_"+stamp()+".xlsx", contentTypeXLSX, buf.Bytes())
}
