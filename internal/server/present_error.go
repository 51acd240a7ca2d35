// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrBadParameter):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrGeminiNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// presentError writes err as JSON for API routes and as the error page
// otherwise. It reports whether err was non-nil.
func (s *Server) presentError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if c.IsAborted() {
		return true
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "unexpected error",
			"path", c.Request.URL.Path, "error", err)
	}

	if isAPI(c) {
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return true
	}
	s.render(c, status, "error.html", "", gin.H{"Status": status, "Message": err.Error()})
	c.Abort()
	return true
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
