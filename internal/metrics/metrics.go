// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galdr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "galdr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Validation metrics
var (
	ValidationRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "galdr_validation_runs_total",
			Help: "Total number of gallery validation passes",
		},
	)

	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "galdr_validation_errors_total",
			Help: "Total number of validation errors reported",
		},
	)

	ValidationWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "galdr_validation_warnings_total",
			Help: "Total number of validation warnings reported",
		},
	)
)

// Derive metrics
var (
	DeriveItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galdr_derive_items_total",
			Help: "Items handled by the asset deriver",
		},
		[]string{"mode", "outcome"}, // outcome: derived, skipped, failed
	)

	DeriveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "galdr_derive_item_duration_seconds",
			Help:    "Time spent deriving assets for one item",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Assembly metrics
var (
	AssemblyItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "galdr_assembly_items",
			Help: "Number of items in the current gallery snapshot",
		},
	)

	AssemblyDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "galdr_assembly_dropped",
			Help: "Number of folders dropped by the last assembly",
		},
	)

	AssemblyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "galdr_assembly_duration_seconds",
			Help:    "Gallery assembly duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galdr_reloads_total",
			Help: "Snapshot reloads by outcome",
		},
		[]string{"outcome"}, // ok, failed
	)
)

// Query metrics
var (
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "galdr_query_duration_seconds",
			Help:    "Ranking query duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"kind"}, // search, related, tags
	)

	QueryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galdr_query_cache_hits_total",
			Help: "Query results served from cache",
		},
		[]string{"kind"},
	)
)
