// Package cache provides the in-process versioned TTL cache.
//
// The manager stores arbitrary values with a per-key time-to-live and keeps a
// monotonic version counter per namespace:
//
// - Lazy expiry on Get (an optional sweeper reclaims unread entries)
// - Namespace versions for lock-free invalidation
// - Literal substring bulk removal (ClearPattern)
// - Lock-free concurrent maps (xsync) for entries and versions
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.DefaultConfig(), logging.NewLogger("cache"))
//
//	key := manager.Key("orders", "page", "1", "50") // orders:1:page:1:50
//
//	if v, ok := manager.Get(key.String()); ok {
//		// Cache hit
//	}
//
//	manager.Set(key.String(), page, time.Minute)
//
// # Invalidation
//
// Writers never clear and rebuild. They bump the namespace version, which
// makes every reader compute a new key and miss:
//
//	manager.IncrementVersion("orders")                  // orders:2:...
//	manager.ClearPattern(cache.NamespacePattern("orders")) // optional reclaim
//
// ClearPattern is memory reclaim only; correctness comes from versioning.
//
// # Metrics
//
//   - bistro_cache_hits_total - Cache hits
//   - bistro_cache_misses_total - Cache misses
//   - bistro_cache_entries - Resident entries
//   - bistro_cache_removals_total{reason} - Removed entries
//   - bistro_cache_version_bumps_total{namespace} - Version increments
//
// # Memory
//
// Total size is not bounded. Orphaned versioned entries stay resident until
// their TTL elapses and they are either read, swept (RunSweeper) or cleared.
package cache
