// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for the processing stages
// and the web server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sanctions_engine"

// Stage outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds all Prometheus metrics for the application. Each instance
// owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsProcessed *prometheus.CounterVec
	RecordsExtracted   prometheus.Counter
	ListRecords        *prometheus.GaugeVec
	ListRefreshes      *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ScreeningMatches   prometheus.Counter
	LoginAttempts      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DocumentsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		RecordsExtracted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records extracted from uploaded documents.",
		}),
		ListRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_records",
			Help:      "Records in the latest snapshot of each sanctions list.",
		}, []string{"list"}),
		ListRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_refreshes_total",
			Help:      "Sanctions list refreshes, by list and outcome.",
		}, []string{"list", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of processing stages.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		ScreeningMatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screening_matches_total",
			Help:      "Screening matches found against the sanctions lists.",
		}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records how long a stage took and its outcome.
func (m *Metrics) ObserveStage(stage string, start time.Time, outcome string) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	m.DocumentsProcessed.WithLabelValues(stage, outcome).Inc()
}

// ObserveRefresh records a list refresh and, on success, the list size.
func (m *Metrics) ObserveRefresh(list string, records int, err error) {
	if err != nil {
		m.ListRefreshes.WithLabelValues(list, OutcomeFailed).Inc()
		return
	}
	m.ListRefreshes.WithLabelValues(list, OutcomeOK).Inc()
	m.ListRecords.WithLabelValues(list).Set(float64(records))
}

// ObserveLogin counts a login attempt.
func (m *Metrics) ObserveLogin(ok bool) {
	if ok {
		m.LoginAttempts.WithLabelValues(OutcomeOK).Inc()
		return
	}
	m.LoginAttempts.WithLabelValues(OutcomeFailed).Inc()
}
