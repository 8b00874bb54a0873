package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Core request/hit/miss counters, labelled by HTTP method
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_requests_total",
			Help: "Total number of requests through the caching client",
		},
		[]string{"method"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_hits_total",
			Help: "Total number of requests served from cache",
		},
		[]string{"method"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"method"},
	)

	// Callers that joined an in-flight request instead of issuing their own
	DedupJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_dedup_joins_total",
			Help: "Total number of requests joined to an identical in-flight request",
		},
		[]string{"method"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_errors_total",
			Help: "Total number of swallowed cache errors",
		},
		[]string{"level", "kind"},
	)

	CleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_cache_cleanup_removed_total",
			Help: "Entries removed by periodic cleanup",
		},
		[]string{"map"}, // "cache" or "pending"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhir_cache_entries",
			Help: "Number of entries held by the cache store",
		},
	)

	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhir_cache_pending_requests",
			Help: "Number of in-flight upstream requests tracked for deduplication",
		},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhir_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)

	TokenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_token_requests_total",
			Help: "Token endpoint requests by grant type and outcome",
		},
		[]string{"grant_type", "outcome"}, // outcome: "success" or an error kind
	)
)

// RecordCacheRequest records a request through the caching client
func RecordCacheRequest(method string) {
	CacheRequests.WithLabelValues(method).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(method string) {
	CacheHits.WithLabelValues(method).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(method string) {
	CacheMisses.WithLabelValues(method).Inc()
}

// RecordDedupJoin records a caller joining a pending request
func RecordDedupJoin(method string) {
	DedupJoins.WithLabelValues(method).Inc()
}

// RecordCacheError records a swallowed cache error with level and kind
func RecordCacheError(level, kind string) {
	CacheErrors.WithLabelValues(level, kind).Inc()
}

// RecordCleanup records entries removed by a cleanup pass
func RecordCleanup(expired, stalePending int) {
	CleanupRemoved.WithLabelValues("cache").Add(float64(expired))
	CleanupRemoved.WithLabelValues("pending").Add(float64(stalePending))
}

// UpdateCacheStats sets the cache and pending gauges
func UpdateCacheStats(entries, pending int) {
	CacheEntries.Set(float64(entries))
	PendingRequests.Set(float64(pending))
}

// TimeUpstreamRequest returns a function that observes the request duration with its outcome
func TimeUpstreamRequest(method string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		UpstreamDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	}
}

// RecordTokenRequest records a token endpoint call
func RecordTokenRequest(grantType, outcome string) {
	TokenRequests.WithLabelValues(grantType, outcome).Inc()
}
