package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// posctl client metrics
var (
	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"result"}, // hit, miss, stale
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_cache_entries",
			Help: "Number of entries currently held in the response cache",
		},
	)

	// Fetch metrics
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_fetch_requests_total",
			Help: "Total number of query fetches that reached the network",
		},
		[]string{"status"}, // success, error, stale
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_fetch_duration_seconds",
			Help:    "Query fetch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_mutations_total",
			Help: "Total number of mutations",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of backend HTTP requests",
		},
		[]string{"method", "code"},
	)

	// Notification channel metrics
	NotifyConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_notify_connected",
			Help: "Whether the order notification channel is connected (1) or not (0)",
		},
	)

	NotifyReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_notify_reconnects_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	NotifyMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_notify_messages_total",
			Help: "Total number of notification messages received",
		},
		[]string{"type"},
	)

	NotifyDroppedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_notify_dropped_messages_total",
			Help: "Total number of malformed notification messages dropped",
		},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
