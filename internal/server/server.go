// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the web application: login gate, dashboard, PDF and
// batch processing pages, list pages, downloads and a JSON API.
package server

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pdiddy/sanctions-engine/internal/auth"
	"github.com/pdiddy/sanctions-engine/internal/pipeline"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionCookie   = "sanctions_session"
	shutdownTimeout = 10 * time.Second
	appTitle        = "BIDV Sanctions Processing System"
)

// Server serves the web application.
type Server struct {
	cfg    types.ServerConfig
	svc    *pipeline.Service
	auth   *auth.Authenticator
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the router. The service's metrics are exposed on /metrics.
func New(cfg types.ServerConfig, svc *pipeline.Service, a *auth.Authenticator, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(tmpl)

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		auth:   a,
		logger: logger,
		engine: r,
	}
	r.Use(s.logging(), s.instrument())
	s.addRoutes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is done, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "web server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down web server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down web server")
	}
	return nil
}

var numberPrinter = message.NewPrinter(language.English)

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"num": func(n any) string { return numberPrinter.Sprintf("%d", n) },
		"pct": func(score float64) string { return numberPrinter.Sprintf("%.1f%%", score*100) },
		"when": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return t.Local().Format("2006-01-02 15:04:05")
		},
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	return tmpl, nil
}

// page is the data passed to every HTML template.
type page struct {
	Title  string
	Active string
	User   string
	Flash  string
	Error  string
	Data   any
}

func (s *Server) render(c *gin.Context, status int, name, active string, data any) {
	p := page{Title: appTitle, Active: active, User: username(c), Data: data}
	if flash := c.Query("flash"); flash != "" {
		p.Flash = flash
	}
	c.HTML(status, name, p)
}
