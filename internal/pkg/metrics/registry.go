package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "absentia_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "absentia_db_rows_affected",
			Help:                            "Number of rows affected by database write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Identity Resolution Metrics
var (
	// AuthResolutions tracks identity resolutions by outcome
	// outcome: authorized, unauthenticated, invalid_argument, internal
	AuthResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_auth_resolutions_total",
			Help: "Total identity resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// AuthVerifyFailures tracks token verification failures by kind
	AuthVerifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_auth_verify_failures_total",
			Help: "Total token verification failures by failure kind",
		},
		[]string{"kind"},
	)

	// JWKSFetches tracks key-set fetches against the identity provider
	JWKSFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_jwks_fetches_total",
			Help: "Total JWKS endpoint fetches by status",
		},
		[]string{"status"},
	)
)

// Cache Metrics
var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_cache_hits_total",
			Help: "Total cache hits by cache name",
		},
		[]string{"cache_name"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_cache_misses_total",
			Help: "Total cache misses by cache name",
		},
		[]string{"cache_name"},
	)

	// CacheSize tracks current cache size
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "absentia_cache_entries",
			Help: "Current number of entries in cache",
		},
		[]string{"cache_name"},
	)

	// CacheEvictions tracks cache evictions
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_cache_evictions_total",
			Help: "Total cache evictions by cache name",
		},
		[]string{"cache_name"},
	)
)

// HTTP Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "absentia_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "absentia_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)

// Business Metrics
var (
	// LeaveRequestsTotal tracks leave request submissions by type
	LeaveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_leave_requests_total",
			Help: "Total leave requests submitted by leave type",
		},
		[]string{"leave_type"},
	)

	// LeaveDecisions tracks approve/reject/cancel decisions
	LeaveDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absentia_leave_decisions_total",
			Help: "Total leave request decisions by decision",
		},
		[]string{"decision"},
	)
)
