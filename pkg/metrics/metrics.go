// Package metrics provides the Prometheus registry and exposition handler for
// the caching layer. All metrics are defined in their respective packages
// (cache, coalesce, etag, transform, readthrough, server) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the caching layer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric in the
// Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Response Cache Metrics (pkg/cache):
//   - bistro_cache_hits_total (Counter): Response cache hits
//   - bistro_cache_misses_total (Counter): Response cache misses, expired entries included
//   - bistro_cache_entries (Gauge): Resident entries
//   - bistro_cache_removals_total{reason} (Counter): Removals by reason (expired, sweep, delete, pattern, clear)
//   - bistro_cache_version_bumps_total{namespace} (Counter): Namespace version increments
//
// Coalescing Metrics (pkg/coalesce):
//   - bistro_coalesce_inflight (Gauge): Producer runs in flight
//   - bistro_coalesce_shared_total (Counter): Callers served by a shared result
//   - bistro_coalesce_timeouts_total (Counter): Producer runs that exceeded the timeout
//   - bistro_coalesce_producer_errors_total (Counter): Failed producer runs
//
// Read Path Metrics (pkg/readthrough):
//   - bistro_readthrough_loads_total{outcome} (Counter): Loads by outcome (hit, miss, error)
//   - bistro_readthrough_load_duration_seconds{outcome} (Histogram): Load duration by outcome
//   - bistro_readthrough_cache_soft_failures_total{operation} (Counter): Bypassed cache failures
//
// Conditional Response Metrics (pkg/etag):
//   - bistro_etag_304_responses_total (Counter): 304 Not Modified responses
//   - bistro_etag_full_responses_total (Counter): 200 responses sent with a body
//
// Transform Cache Metrics (pkg/transform):
//   - bistro_transform_cache_hits_total (Counter): Derived artifact hits
//   - bistro_transform_cache_misses_total (Counter): Derived artifact misses
//   - bistro_transform_cache_evictions_total (Counter): FIFO evictions
//   - bistro_transform_compute_failures_total (Counter): Failed computations
//   - bistro_transform_cache_entries (Gauge): Resident artifacts
//
// HTTP Metrics (internal/server):
//   - bistro_http_requests_total{route, status} (Counter): Requests by route pattern and status
//   - bistro_http_request_duration_seconds{route} (Histogram): Request duration by route pattern
//   - bistro_media_fallbacks_total (Counter): Variant requests answered with the source bytes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(bistro_cache_hits_total[5m])) /
//   (sum(rate(bistro_cache_hits_total[5m])) + sum(rate(bistro_cache_misses_total[5m])))
//
//   # Coalescing Effectiveness
//   rate(bistro_coalesce_shared_total[5m])
//
//   # Producer Timeouts
//   increase(bistro_coalesce_timeouts_total[15m]) > 0
//
//   # P95 Read Latency
//   histogram_quantile(0.95, rate(bistro_readthrough_load_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(bistro_etag_304_responses_total[5m]) /
//   (rate(bistro_etag_304_responses_total[5m]) + rate(bistro_etag_full_responses_total[5m]))
