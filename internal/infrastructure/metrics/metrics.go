// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry and the application's collectors. A nil *Recorder
// records nothing, so services can run without metrics.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	writesTotal    *prometheus.CounterVec
	renumberRows   prometheus.Histogram
	staleWrites    prometheus.Counter
	persistFailure *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasklist_writes_total",
				Help: "Task list persist calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		renumberRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tasklist_renumber_rows",
				Help:    "Rows rewritten per renumber",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50, 100},
			},
		),
		staleWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tasklist_stale_writes_total",
				Help: "Writes rejected because the base version was stale",
			},
		),
		persistFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasklist_persist_failures_total",
				Help: "Ledger writes that failed in storage",
			},
			[]string{"op"},
		),
	}

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.writesTotal,
		r.renumberRows,
		r.staleWrites,
		r.persistFailure,
		collectors.NewGoCollector(),
	)
	return r
}

// Outcomes for ObserveWrite
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
)

// ObserveWrite counts one persist call
func (r *Recorder) ObserveWrite(op, outcome string) {
	if r == nil {
		return
	}
	r.writesTotal.WithLabelValues(op, outcome).Inc()
	switch outcome {
	case OutcomeStale:
		r.staleWrites.Inc()
	case OutcomeError:
		r.persistFailure.WithLabelValues(op).Inc()
	}
}

// ObserveRenumber records the size of a renumber window
func (r *Recorder) ObserveRenumber(rows int) {
	if r == nil {
		return
	}
	r.renumberRows.Observe(float64(rows))
}

// Middleware records request counts and latency per route
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			r.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			r.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the registry in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
