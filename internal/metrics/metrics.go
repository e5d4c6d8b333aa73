// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Total number of portal login attempts",
		},
		[]string{"result"},
	)

	ReloginsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_relogins_total",
			Help: "Total number of automatic relogins after session expiry",
		},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fetches_total",
			Help: "Total number of portal data fetches",
		},
		[]string{"endpoint", "result"},
	)

	CheckinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_submissions_total",
			Help: "Total number of check-in submissions",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of store sync operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
