// Package metrics provides the Prometheus series for the feed
// acquisition pipeline, following the teacher's
// internal/observability/metrics/registry.go promauto pattern, scoped
// down to feed-specific series per spec.md §4.G's per-outcome
// statistics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DiscoveryTotal counts discovery attempts by strategy and outcome
	// ("found" or "not_found").
	DiscoveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_discovery_total",
			Help: "Total number of feed discovery attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// PassThroughTotal counts requests served via §4.E mode 1
	// (discovered feed, rewritten in place).
	PassThroughTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_pass_through_total",
			Help: "Total number of requests served by rewriting a discovered upstream feed",
		},
	)

	// SynthesizedTotal counts requests served via §4.E mode 2
	// (extracted articles assembled into a fresh feed).
	SynthesizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_synthesized_total",
			Help: "Total number of requests served by synthesizing a feed from extracted articles",
		},
	)

	// CacheHitTotal and CacheMissTotal track the Result Cache's hit
	// ratio, per spec.md §4.G.
	CacheHitTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_hit_total",
			Help: "Total number of Result Cache hits",
		},
	)
	CacheMissTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_miss_total",
			Help: "Total number of Result Cache misses",
		},
	)

	// RequestDuration measures end-to-end request latency by path
	// (cache_hit, pass_through, synthesized), per spec.md §4.G
	// "average latency per path".
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "End-to-end request duration in seconds by serving path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// OriginFetchDuration measures the Origin Fetcher's own latency,
	// independent of discovery/extraction overhead.
	OriginFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_origin_fetch_duration_seconds",
			Help:    "Origin Fetcher GET/HEAD latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveRequest records a request's serving path and latency.
func ObserveRequest(path string, d time.Duration) {
	RequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

// ObserveDiscovery records a discovery attempt's strategy and outcome.
func ObserveDiscovery(strategy string, found bool) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	DiscoveryTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObservePassThrough records a request served by rewriting a
// discovered upstream feed (§4.E mode 1).
func ObservePassThrough() {
	PassThroughTotal.Inc()
}

// ObserveSynthesized records a request served by synthesizing a feed
// from extracted articles (§4.E mode 2).
func ObserveSynthesized() {
	SynthesizedTotal.Inc()
}

// ObserveCacheHit records a Result Cache hit.
func ObserveCacheHit() {
	CacheHitTotal.Inc()
}

// ObserveCacheMiss records a Result Cache miss.
func ObserveCacheMiss() {
	CacheMissTotal.Inc()
}

// ObserveOriginFetch records the Origin Fetcher's own GET/HEAD latency,
// independent of discovery/extraction overhead.
func ObserveOriginFetch(d time.Duration) {
	OriginFetchDuration.Observe(d.Seconds())
}
