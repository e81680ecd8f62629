// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DocsProcessedTotal   *prometheus.CounterVec
	ProcessingDuration   *prometheus.HistogramVec
	ChunksPersistedTotal prometheus.Counter
	ExtractionWinsTotal  *prometheus.CounterVec
	EmbeddingSourceTotal *prometheus.CounterVec
	RetrievalStageTotal  *prometheus.CounterVec
	RetrievalLatency     *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_processed_total",
				Help: "Documents processed by outcome (ok, degraded, error).",
			},
			[]string{"outcome"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "document_processing_duration_seconds",
				Help:    "End-to-end document processing latency by stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		ChunksPersistedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_persisted_total",
				Help: "Total chunks written to the datastore.",
			},
		),
		ExtractionWinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdf_extraction_wins_total",
				Help: "PDF extraction strategy selections (layout, tokenstream, sentinel).",
			},
			[]string{"strategy"},
		),
		EmbeddingSourceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_source_total",
				Help: "Embedding generations by source (provider, hash, random).",
			},
			[]string{"source"},
		),
		RetrievalStageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_stage_total",
				Help: "Retrieval cascade outcomes by stage (vector, keyword, recency, empty).",
			},
			[]string{"stage"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_latency_seconds",
				Help:    "Retrieval query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsProcessedTotal,
		m.ProcessingDuration,
		m.ChunksPersistedTotal,
		m.ExtractionWinsTotal,
		m.EmbeddingSourceTotal,
		m.RetrievalStageTotal,
		m.RetrievalLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
