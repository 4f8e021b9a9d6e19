// Package cache provides the in-process versioned TTL cache used in front of
// the API's data-fetch handlers.
package cache

import (
	"time"
)

// CacheEntry represents a cached value.
type CacheEntry struct {
	// Key is the rendered cache key
	Key string

	// Value is the cached payload (decoded object or raw bytes)
	Value any

	// Expires is when the entry stops being visible to Get
	Expires time.Time

	// CachedAt is when the entry was stored
	CachedAt time.Time
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the entry is invisible at t.
// An entry is visible iff t < Expires.
func (e *CacheEntry) IsExpiredAt(t time.Time) bool {
	return !t.Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
