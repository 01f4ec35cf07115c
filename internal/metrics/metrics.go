// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks current active connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// RateLimitDecisionsTotal counts limiter decisions by policy and outcome.
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate limit decisions",
		},
		[]string{"policy", "outcome"},
	)

	// RateLimitStoreErrorsTotal counts checks that failed on the store.
	RateLimitStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_store_errors_total",
			Help: "Total number of rate limit checks that failed on the store",
		},
		[]string{"policy"},
	)

	// RateLimitMalformedTotal counts stored counters that could not be decoded.
	RateLimitMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_malformed_counters_total",
			Help: "Total number of malformed counters replaced by a fresh window",
		},
	)

	// KVOperationDuration measures key-value store latency.
	KVOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kv_operation_duration_seconds",
			Help:    "Key-value store operation duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation", "outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimitDecision records an allowed or denied check.
func RecordRateLimitDecision(policy string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	RateLimitDecisionsTotal.WithLabelValues(policy, outcome).Inc()
}

// RecordRateLimitStoreError records a check that failed on the store.
func RecordRateLimitStoreError(policy string) {
	RateLimitStoreErrorsTotal.WithLabelValues(policy).Inc()
}

// RecordMalformedCounter records a counter that was replaced because it
// could not be decoded.
func RecordMalformedCounter() {
	RateLimitMalformedTotal.Inc()
}

// RecordKVOperation records a key-value store operation.
func RecordKVOperation(backend, operation, outcome string, duration time.Duration) {
	KVOperationDuration.WithLabelValues(backend, operation, outcome).Observe(duration.Seconds())
}
