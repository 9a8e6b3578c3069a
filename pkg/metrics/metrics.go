// Package metrics defines the Prometheus collectors for the guidance search
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	FilteredOutTotal     prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	KBReloadsTotal       *prometheus.CounterVec
	KBDocuments          prometheus.Gauge
	KBInfo               *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_search_queries_total",
				Help: "Total guidance searches by outcome (results, zero_result, empty_query, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kb_search_latency_seconds",
				Help:    "Search plus filter latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kb_search_results_count",
				Help:    "Number of documents returned per search after filtering.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		FilteredOutTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_search_filtered_out_total",
				Help: "Ranked documents removed by facet and freshness filters.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		KBReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_reloads_total",
				Help: "KB snapshot reloads by status (ok, error).",
			},
			[]string{"status"},
		),
		KBDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kb_documents",
				Help: "Documents in the live KB snapshot.",
			},
		),
		KBInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kb_info",
				Help: "Always 1; labelled with the live KB version.",
			},
			[]string{"kb_version"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.FilteredOutTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.KBReloadsTotal,
		m.KBDocuments,
		m.KBInfo,
	)

	return m
}

// SetKB records the live snapshot's version and size.
func (m *Metrics) SetKB(version string, docs int) {
	m.KBInfo.Reset()
	m.KBInfo.WithLabelValues(version).Set(1)
	m.KBDocuments.Set(float64(docs))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
