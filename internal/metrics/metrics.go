package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: how many external-call responses were served from cache.
	ExactHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookmatch_exact_cache_hits_total",
			Help: "Total number of external-call cache hits.",
		},
	)

	// Counter: external text-understanding calls by outcome (ok, cache_hit, or failure kind).
	ExternalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmatch_external_calls_total",
			Help: "External text-understanding calls by outcome.",
		},
		[]string{"outcome"},
	)

	// Counter: preference extractions by source (external | fallback).
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmatch_extractions_total",
			Help: "Preference extractions by source.",
		},
		[]string{"source"},
	)

	// Counter: catalog lookup calls by outcome (ok, error, open).
	LookupCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmatch_lookup_calls_total",
			Help: "Google Books lookup calls by outcome.",
		},
		[]string{"outcome"},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookmatch_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 20},
		},
		[]string{"route", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		ExactHitsTotal,
		ExternalCallsTotal,
		ExtractionsTotal,
		LookupCallsTotal,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request, labelled by chi route
// pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
