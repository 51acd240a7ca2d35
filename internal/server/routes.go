// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"

	limits "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"
)

func (s *Server) addRoutes() {
	r := s.engine
	uploadLimit := limits.RequestSizeLimiter(s.cfg.MaxUploadMB << 20)

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.svc.Metrics().Handler()))
	r.GET("/login", s.handleLoginForm)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	pages := r.Group("/", s.requireSession())
	pages.GET("/", s.handleDashboard)
	pages.GET("/pdf", s.handlePDFForm)
	pages.POST("/pdf", uploadLimit, s.handlePDFUpload)
	pages.GET("/ofac", s.handleListPage(listOFAC))
	pages.POST("/ofac/fetch", s.handleListFetch(listOFAC))
	pages.GET("/un", s.handleListPage(listUN))
	pages.POST("/un/fetch", s.handleListFetch(listUN))
	pages.GET("/batch", s.handleBatchForm)
	pages.POST("/batch", uploadLimit, s.handleBatchRun)
	pages.GET("/batch/:id", s.handleBatchView)

	dl := pages.Group("/download")
	dl.GET("/documents/:id", s.handleDownloadDocument)
	dl.GET("/ofac", s.handleDownloadList(listOFAC))
	dl.GET("/un", s.handleDownloadList(listUN))
	dl.GET("/batches/:id/csv", s.handleDownloadBatchCSV)
	dl.GET("/batches/:id/xlsx", s.handleDownloadBatchExcel)

	api := r.Group("/api/v1", s.requireSession())
	api.GET("/status", s.handleAPIStatus)
	api.GET("/records", s.handleAPIRecords)
	api.GET("/documents", s.handleAPIDocuments)
	api.GET("/documents/:id", s.handleAPIDocument)
	api.POST("/documents", uploadLimit, s.handleAPIUpload)
	api.GET("/batches", s.handleAPIBatches)
	api.GET("/batches/:id", s.handleAPIBatch)
	api.POST("/lists/:list/refresh", s.handleAPIRefresh)
	api.POST("/screen", s.handleAPIScreen)

	r.NoRoute(func(c *gin.Context) {
		if isAPI(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		s.render(c, http.StatusNotFound, "error.html", "", gin.H{"Status": http.StatusNotFound, "Message": "page not found"})
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.svc.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
