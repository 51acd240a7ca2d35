// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/pipeline"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// previewRows caps the rows rendered in HTML tables. Downloads carry all
// rows.
const previewRows = 500

// list describes one external sanctions list page.
type list struct {
	Key        string
	Label      string
	Title      string
	Source     string
	ListSource types.ListSource
	FilePrefix string
	refresh    func(*pipeline.Service, context.Context) (*pipeline.RefreshResult, error)
}

var (
	listOFAC = list{
		Key:        "ofac",
		Label:      "OFAC",
		Title:      "OFAC Data",
		Source:     store.SourceOFAC,
		ListSource: types.ListOFAC,
		FilePrefix: "ofac_sanctions",
		refresh:    (*pipeline.Service).RefreshOFAC,
	}
	listUN = list{
		Key:        "un",
		Label:      "UN",
		Title:      "UN Sanctions",
		Source:     store.SourceUN,
		ListSource: types.ListUN,
		FilePrefix: "un_sanctions",
		refresh:    (*pipeline.Service).RefreshUN,
	}
)

func listByKey(key string) (list, error) {
	switch key {
	case listOFAC.Key:
		return listOFAC, nil
	case listUN.Key:
		return listUN, nil
	default:
		return list{}, errors.Wrapf(types.ErrNotFound, "unknown list %q", key)
	}
}

// recordTable is the data of a rendered record table.
type recordTable struct {
	Records     []types.Record
	Total       int
	Individuals int
	Entities    int
	Truncated   bool
	WithSource  bool
}

func newRecordTable(records []types.Record, withSource bool) recordTable {
	individuals, entities := consolidate.CountTypes(records)
	t := recordTable{
		Records:     records,
		Total:       len(records),
		Individuals: individuals,
		Entities:    entities,
		WithSource:  withSource,
	}
	if len(records) > previewRows {
		t.Records = records[:previewRows]
		t.Truncated = true
	}
	return t
}

func (s *Server) handleDashboard(c *gin.Context) {
	st, err := s.svc.Status(c.Request.Context())
	if s.presentError(c, err) {
		return
	}
	s.render(c, http.StatusOK, "dashboard.html", "dashboard", st)
}

type pdfPage struct {
	GeminiConfigured bool
	FileName         string
	FileSize         int64
	Result           *pipeline.UploadResult
	Table            recordTable
	Documents        []*types.Document
}

func (s *Server) handlePDFForm(c *gin.Context) {
	docs, err := s.svc.Store().Documents(c.Request.Context())
	if s.presentError(c, err) {
		return
	}
	s.render(c, http.StatusOK, "pdf.html", "pdf", pdfPage{
		GeminiConfigured: s.svc.GeminiConfigured(),
		Documents:        docs,
	})
}

func (s *Server) handlePDFUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, "choose a PDF file to upload"))
		return
	}
	res, err := s.processFile(c.Request.Context(), fh)
	if s.presentError(c, err) {
		return
	}
	s.render(c, http.StatusOK, "pdf.html", "pdf", pdfPage{
		GeminiConfigured: s.svc.GeminiConfigured(),
		FileName:         fh.Filename,
		FileSize:         fh.Size,
		Result:           res,
		Table:            newRecordTable(res.Records, false),
	})
}

func (s *Server) processFile(ctx context.Context, fh *multipart.FileHeader) (*pipeline.UploadResult, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening upload")
	}
	defer f.Close()
	return s.svc.ProcessUpload(ctx, fh.Filename, f)
}

type listPageData struct {
	List     list
	Snapshot *types.ListSnapshot
	Table    recordTable
}

func (s *Server) handleListPage(l list) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		data := listPageData{List: l}

		snap, err := s.svc.Store().LatestSnapshot(ctx, l.ListSource)
		switch {
		case err == nil:
			data.Snapshot = &snap
		case !errors.Is(err, types.ErrNotFound):
			s.presentError(c, err)
			return
		}

		records, err := s.svc.Store().LatestRecords(ctx, l.Source)
		if s.presentError(c, err) {
			return
		}
		data.Table = newRecordTable(records, false)
		s.render(c, http.StatusOK, "list.html", l.Key, data)
	}
}

func (s *Server) handleListFetch(l list) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.refresh(s.svc, c.Request.Context())
		if s.presentError(c, err) {
			return
		}
		flash := "Fetched " + strconv.Itoa(len(res.Records)) + " " + l.Label + " records"
		c.Redirect(http.StatusSeeOther, "/"+l.Key+"?flash="+url.QueryEscape(flash))
	}
}

type batchPage struct {
	GeminiConfigured bool
	Batches          []*types.BatchRun
	Run              *types.BatchRun
	Table            recordTable
}

func (s *Server) handleBatchForm(c *gin.Context) {
	runs, err := s.svc.Store().Batches(c.Request.Context(), 10)
	if s.presentError(c, err) {
		return
	}
	s.render(c, http.StatusOK, "batch.html", "batch", batchPage{
		GeminiConfigured: s.svc.GeminiConfigured(),
		Batches:          runs,
	})
}

func (s *Server) handleBatchRun(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, err.Error()))
		return
	}

	var uploads []pipeline.Upload
	if form != nil {
		for _, fh := range form.File["files"] {
			uploads = append(uploads, pipeline.Upload{
				Name: fh.Filename,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}
	opts := pipeline.BatchOptions{
		IncludeOFAC: c.PostForm("include_ofac") != "",
		IncludeUN:   c.PostForm("include_un") != "",
	}

	res, err := s.svc.RunBatch(c.Request.Context(), uploads, opts)
	if s.presentError(c, err) {
		return
	}
	c.Redirect(http.StatusSeeOther, "/batch/"+res.Run.ID)
}

func (s *Server) handleBatchView(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := s.svc.Store().Batch(ctx, c.Param("id"))
	if s.presentError(c, err) {
		return
	}
	records, err := s.svc.Store().LatestRecords(ctx, store.BatchSource(run.ID))
	if s.presentError(c, err) {
		return
	}
	s.render(c, http.StatusOK, "batch.html", "batch", batchPage{
		GeminiConfigured: s.svc.GeminiConfigured(),
		Run:              run,
		Table:            newRecordTable(records, true),
	})
}
