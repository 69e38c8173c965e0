package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcome labels for FetchTotal.
const (
	ResultHit       = "hit"
	ResultMiss      = "miss"
	ResultForced    = "forced"
	ResultBypass    = "bypass"
	ResultError     = "error"
	ResultRecovered = "recovered"
)

// Cache-level metrics
var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagcache_fetch_total",
			Help: "Total number of fetches by outcome.",
		},
		[]string{"result"},
	)

	ComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagcache_compute_duration_seconds",
			Help:    "Time spent running compute functions on cache misses.",
			Buckets: prometheus.DefBuckets,
		},
	)

	InvalidatedKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagcache_invalidated_keys_total",
			Help: "Total number of keys deleted by invalidation operations.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		FetchTotal,
		ComputeDuration,
		InvalidatedKeysTotal,
	)
}
