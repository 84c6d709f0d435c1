package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "community"

// User directory store.
var (
	DirectoryPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory_pool",
			Name:      "connections",
			Help:      "User directory pool connections by state (acquired, idle, total, max)",
		},
		[]string{"state"},
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "query_duration_seconds",
			Help:      "User directory query latency by backend",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
		[]string{"operation", "backend"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "query_errors_total",
			Help:      "User directory query failures other than not-found",
		},
		[]string{"operation", "backend", "error_type"},
	)
)

// Guards shared by the HTTP surface and the directory.
var (
	RateLimitBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocked_total",
			Help:      "Requests refused by a per-client rate limiter",
		},
		[]string{"limiter"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_rejections_total",
			Help:      "Calls short-circuited while a breaker was open",
		},
		[]string{"name"},
	)

	DomainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_errors_total",
			Help:      "Domain errors rendered to HTTP clients by category and code",
		},
		[]string{"category", "code", "status"},
	)

	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by status and normalized path",
		},
		[]string{"status", "path", "method"},
	)
)
