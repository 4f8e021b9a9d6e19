package cache

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// DefaultVersion is the version of any namespace never explicitly touched.
const DefaultVersion uint64 = 1

// Config holds the cache manager configuration.
type Config struct {
	// SweepInterval is how often RunSweeper removes expired entries (0 disables it)
	SweepInterval time.Duration

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// DefaultConfig returns the default cache configuration.
// Expiry is lazy; the sweeper is opt-in.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 0,
		Clock:         time.Now,
	}
}

// Manager is an in-memory key/value cache with per-key TTL, per-namespace
// version counters and substring-based bulk invalidation.
//
// Writers invalidate a namespace with IncrementVersion; readers embed the
// current version in their keys, so old entries are orphaned rather than
// removed and simply age out.
type Manager struct {
	entries  *xsync.MapOf[string, *CacheEntry]
	versions *xsync.MapOf[string, uint64]
	config   Config
	logger   zerolog.Logger
}

// NewManager creates a new cache manager.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		entries:  xsync.NewMapOf[string, *CacheEntry](),
		versions: xsync.NewMapOf[string, uint64](),
		config:   cfg,
		logger:   logger,
	}
}

// Get returns the value stored under key.
// An expired entry is removed and reported as a miss.
func (m *Manager) Get(key string) (any, bool) {
	entry, ok := m.entries.Load(key)
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	now := m.config.Clock()
	if entry.IsExpiredAt(now) {
		m.removeIfExpired(key, now, "expired")
		CacheMisses.Inc()
		return nil, false
	}

	CacheHits.Inc()
	return entry.Value, true
}

// Set stores value under key for ttl, replacing any previous entry.
// A non-positive ttl stores nothing.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	now := m.config.Clock()
	m.entries.Store(key, &CacheEntry{
		Key:      key,
		Value:    value,
		Expires:  now.Add(ttl),
		CachedAt: now,
	})
	CacheEntries.Set(float64(m.entries.Size()))
}

// Delete removes a cache entry.
func (m *Manager) Delete(key string) {
	if _, ok := m.entries.LoadAndDelete(key); ok {
		CacheRemovals.WithLabelValues("delete").Inc()
		CacheEntries.Set(float64(m.entries.Size()))
	}
}

// Clear removes every entry and resets all namespace versions.
func (m *Manager) Clear() {
	n := m.entries.Size()
	m.entries.Clear()
	m.versions.Clear()

	CacheRemovals.WithLabelValues("clear").Add(float64(n))
	CacheEntries.Set(0)
	m.logger.Debug().Int("removed", n).Msg("Cache cleared")
}

// ClearPattern removes every entry whose key contains substr as a literal
// substring and returns the number of removed entries.
func (m *Manager) ClearPattern(substr string) int {
	removed := 0
	m.entries.Range(func(key string, _ *CacheEntry) bool {
		if strings.Contains(key, substr) {
			if _, ok := m.entries.LoadAndDelete(key); ok {
				removed++
			}
		}
		return true
	})

	CacheRemovals.WithLabelValues("pattern").Add(float64(removed))
	CacheEntries.Set(float64(m.entries.Size()))
	m.logger.Debug().
		Str("pattern", substr).
		Int("removed", removed).
		Msg("Cache pattern cleared")

	return removed
}

// GetVersion returns the current version of namespace ns.
func (m *Manager) GetVersion(ns string) uint64 {
	if v, ok := m.versions.Load(ns); ok {
		return v
	}
	return DefaultVersion
}

// IncrementVersion bumps the version of ns and returns the new value.
func (m *Manager) IncrementVersion(ns string) uint64 {
	v, _ := m.versions.Compute(ns, func(old uint64, loaded bool) (uint64, bool) {
		if !loaded {
			old = DefaultVersion
		}
		return old + 1, false
	})

	VersionBumps.WithLabelValues(ns).Inc()
	m.logger.Debug().
		Str("namespace", ns).
		Uint64("version", v).
		Msg("Namespace version incremented")

	return v
}

// Key builds a cache key for ns embedding its current version.
func (m *Manager) Key(ns string, shape ...string) CacheKey {
	return CacheKey{
		Resource: ns,
		Version:  m.GetVersion(ns),
		Shape:    shape,
	}
}

// Len returns the number of resident entries, expired ones included.
func (m *Manager) Len() int {
	return m.entries.Size()
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.config.Clock()
	removed := 0
	m.entries.Range(func(key string, entry *CacheEntry) bool {
		if entry.IsExpiredAt(now) && m.removeIfExpired(key, now, "sweep") {
			removed++
		}
		return true
	})
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
// It returns immediately when interval is not positive.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("Cache sweeper started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Cache sweeper stopped")
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug().Int("removed", n).Msg("Swept expired entries")
			}
		}
	}
}

// removeIfExpired deletes key only if the resident entry is still expired at
// now, so a concurrent Set is never lost.
func (m *Manager) removeIfExpired(key string, now time.Time, reason string) bool {
	removed := false
	m.entries.Compute(key, func(old *CacheEntry, loaded bool) (*CacheEntry, bool) {
		if !loaded {
			return old, true
		}
		removed = old.IsExpiredAt(now)
		return old, removed
	})

	if removed {
		CacheRemovals.WithLabelValues(reason).Inc()
		CacheEntries.Set(float64(m.entries.Size()))
	}
	return removed
}
