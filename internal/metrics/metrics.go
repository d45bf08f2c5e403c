package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_cache_requests_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"result"}, // result: hit, stale, miss
	)

	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_cache_fetches_total",
			Help: "Upstream fetches issued by the cache",
		},
		[]string{"kind", "status"}, // kind: cold, refresh; status: success, failure, timeout
	)

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_upstream_requests_total",
			Help: "HTTP requests made to sports data providers",
		},
		[]string{"provider", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pace_upstream_request_duration_seconds",
			Help:    "Latency of provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Pre-warm metrics
	PrewarmRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_prewarm_runs_total",
			Help: "Completed pre-warm passes",
		},
		[]string{"status"},
	)

	PrewarmEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_prewarm_entities_total",
			Help: "Entities visited by pre-warm passes",
		},
		[]string{"result"}, // result: warmed, not_found, skipped, failed
	)

	PrewarmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pace_prewarm_duration_seconds",
			Help:    "Duration of a full pre-warm pass",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// API metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pace_http_requests_total",
			Help: "Requests served by the API",
		},
		[]string{"route", "code"},
	)
)
