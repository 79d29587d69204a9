// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the EOEX server.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts HTTP requests by method, route pattern, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eoex_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eoex_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthOutcomesTotal counts login and token resolution outcomes.
	AuthOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eoex_auth_outcomes_total",
			Help: "Authentication outcomes",
		},
		[]string{"operation", "outcome"},
	)

	// TenantsProvisionedTotal counts tenants created, by source (bootstrap or register).
	TenantsProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eoex_tenants_provisioned_total",
			Help: "Tenants created",
		},
		[]string{"source"},
	)

	// RecordOperationsTotal counts tenant-scoped record operations by kind, operation and outcome.
	RecordOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eoex_record_operations_total",
			Help: "Record operations",
		},
		[]string{"kind", "operation", "outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eoex_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthOutcomesTotal,
		TenantsProvisionedTotal,
		RecordOperationsTotal,
		RateLimitRejectedTotal,
	)
}
