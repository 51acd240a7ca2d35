// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

func (s *Server) handleAPIStatus(c *gin.Context) {
	st, err := s.svc.Status(c.Request.Context())
	if s.presentError(c, err) {
		return
	}
	c.JSON(http.StatusOK, st)
}

type recordsQuery struct {
	Query     string `form:"q"`
	Type      string `form:"type"`
	Watchlist string `form:"watchlist"`
	Source    string `form:"source"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=10000"`
}

func (s *Server) handleAPIRecords(c *gin.Context) {
	var q recordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, err.Error()))
		return
	}
	records, err := s.svc.Store().Retrieve(c.Request.Context(), store.QueryOptions{
		Query:      q.Query,
		Type:       types.RecordType(q.Type),
		Watchlist:  q.Watchlist,
		Source:     q.Source,
		MaxResults: q.Limit,
	})
	if s.presentError(c, err) {
		return
	}
	if records == nil {
		records = []store.StoredRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (s *Server) handleAPIDocuments(c *gin.Context) {
	docs, err := s.svc.Store().Documents(c.Request.Context())
	if s.presentError(c, err) {
		return
	}
	if docs == nil {
		docs = []*types.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleAPIDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := s.svc.Store().Document(ctx, c.Param("id"))
	if s.presentError(c, err) {
		return
	}
	records, err := s.svc.Store().LatestRecords(ctx, store.DocumentSource(doc.ID))
	if s.presentError(c, err) {
		return
	}
	if records == nil {
		records = []types.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"document": doc, "records": records})
}

func (s *Server) handleAPIUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, "multipart field \"file\" is required"))
		return
	}
	res, err := s.processFile(c.Request.Context(), fh)
	if s.presentError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, res)
}

type batchesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

func (s *Server) handleAPIBatches(c *gin.Context) {
	var q batchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	runs, err := s.svc.Store().Batches(c.Request.Context(), q.Limit)
	if s.presentError(c, err) {
		return
	}
	if runs == nil {
		runs = []*types.BatchRun{}
	}
	c.JSON(http.StatusOK, gin.H{"batches": runs})
}

func (s *Server) handleAPIBatch(c *gin.Context) {
	run, err := s.svc.Store().Batch(c.Request.Context(), c.Param("id"))
	if s.presentError(c, err) {
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleAPIRefresh(c *gin.Context) {
	l, err := listByKey(c.Param("list"))
	if s.presentError(c, err) {
		return
	}
	res, err := l.refresh(s.svc, c.Request.Context())
	if s.presentError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": res.Snapshot, "records": len(res.Records)})
}

type screenRequest struct {
	Records []types.Record `json:"records" binding:"required,min=1"`
}

func (s *Server) handleAPIScreen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.presentError(c, errors.Wrap(types.ErrBadParameter, err.Error()))
		return
	}
	matches, err := s.svc.Screen(c.Request.Context(), req.Records)
	if s.presentError(c, err) {
		return
	}
	if matches == nil {
		matches = []types.Match{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
