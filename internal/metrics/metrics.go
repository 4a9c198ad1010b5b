// Package metrics defines Prometheus collectors for the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// Import metrics
var (
	// ImportBatchesTotal tracks import batches by type and mode.
	ImportBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_batches_total",
			Help: "Total number of bulk import batches by type and mode",
		},
		[]string{"type", "mode"}, // mode: "validate", "apply"
	)

	// ImportRecordsTotal tracks per-record import outcomes.
	ImportRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_total",
			Help: "Total number of imported records by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: "success", "failed"
	)

	// ImportBatchDuration tracks batch processing time.
	ImportBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_batch_duration_seconds",
			Help:    "Bulk import batch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)
)

// Role assignment metrics
var (
	// RoleAssignmentsTotal tracks assignment mutations by operation.
	RoleAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_assignments_total",
			Help: "Total number of role assignment operations by operation and outcome",
		},
		[]string{"operation", "outcome"}, // operation: "replace", "assign", "remove"
	)
)

// Connection test metrics
var (
	// ConnectionTestsTotal tracks connectivity tests by result.
	ConnectionTestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_tests_total",
			Help: "Total number of connection tests by driver and result",
		},
		[]string{"driver", "result"},
	)
)

// Background job metrics
var (
	// JobsEnqueuedTotal tracks tasks handed to the queue.
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of background jobs enqueued by task type",
		},
		[]string{"task"},
	)

	// JobsProcessedTotal tracks worker results.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of background jobs processed by task type and outcome",
		},
		[]string{"task", "outcome"},
	)
)
