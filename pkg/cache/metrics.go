package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bistro_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks cache misses (absent or expired keys)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bistro_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheEntries tracks resident entries, expired ones included
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bistro_cache_entries",
			Help: "Current number of resident response cache entries",
		},
	)

	// CacheRemovals tracks removed entries by reason
	CacheRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bistro_cache_removals_total",
			Help: "Total number of removed response cache entries",
		},
		[]string{"reason"}, // "expired", "delete", "pattern", "sweep", "clear"
	)

	// VersionBumps tracks namespace version increments
	VersionBumps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bistro_cache_version_bumps_total",
			Help: "Total number of namespace version increments",
		},
		[]string{"namespace"},
	)
)
