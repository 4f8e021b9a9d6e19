// Package readthrough ties the versioned cache and the request coalescer
// together into the read path used by handlers.
package readthrough

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/bistro-cache/pkg/cache"
	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the read path.
var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_readthrough_loads_total",
		Help: "Total read-through loads by outcome",
	}, []string{"outcome"}) // "hit", "miss", "error"

	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bistro_readthrough_load_duration_seconds",
		Help:    "Read-through load duration in seconds by outcome",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"outcome"})

	softFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_readthrough_cache_soft_failures_total",
		Help: "Cache operations that failed and were bypassed",
	}, []string{"operation"})
)

// Store is the cache surface the loader needs; *cache.Manager implements it.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	IncrementVersion(ns string) uint64
	ClearPattern(substr string) int
}

var _ Store = (*cache.Manager)(nil)

// Loader serves reads from the cache and coalesces misses into one producer
// run per key.
type Loader struct {
	cache     Store
	coalescer *coalesce.Coalescer
	logger    zerolog.Logger
}

// New creates a new read-through loader.
func New(c Store, co *coalesce.Coalescer, logger zerolog.Logger) *Loader {
	if c == nil {
		panic("cache store cannot be nil")
	}
	if co == nil {
		panic("coalescer cannot be nil")
	}
	return &Loader{
		cache:     c,
		coalescer: co,
		logger:    logger,
	}
}

// Load returns the value for key, reporting whether it came from the cache.
//
// On a miss the producer runs at most once per key across concurrent callers;
// that single run stores its result with ttl. Producer errors and timeouts are
// returned to every waiter and nothing is cached.
func (l *Loader) Load(ctx context.Context, key string, ttl time.Duration, producer coalesce.Producer) (any, bool, error) {
	return l.load(ctx, key, ttl, producer, nil)
}

// load is Load with an optional check on cached values. A cached value that
// accept rejects is dropped and treated as a miss.
func (l *Loader) load(ctx context.Context, key string, ttl time.Duration, producer coalesce.Producer, accept func(any) bool) (any, bool, error) {
	start := time.Now()

	// Step 1: Check Cache
	if val, ok := l.cacheGet(key); ok {
		if accept == nil || accept(val) {
			l.observe("hit", start)
			l.logger.Debug().Str("key", key).Msg("Cache hit")
			return val, true, nil
		}
		l.logger.Warn().
			Str("key", key).
			Str("type", fmt.Sprintf("%T", val)).
			Msg("Cached value has unexpected type - reloading")
		l.cacheDelete(key)
	}

	// Step 2: Coalesce the miss
	l.logger.Debug().Str("key", key).Msg("Cache miss")
	val, err := l.coalescer.Dedupe(ctx, key, func(ctx context.Context) (any, error) {
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		// Step 3: Store the result once for every waiter. A run that
		// outlived its timeout has already failed its waiters.
		if ctx.Err() != nil {
			return v, nil
		}
		l.cacheSet(key, v, ttl)
		return v, nil
	})
	if err != nil {
		l.observe("error", start)
		return nil, false, err
	}

	l.observe("miss", start)
	return val, false, nil
}

// Invalidate bumps the namespace version and reclaims the orphaned entries.
// It returns the new version.
func (l *Loader) Invalidate(ns string) uint64 {
	v := l.cache.IncrementVersion(ns)
	removed := l.cache.ClearPattern(cache.NamespacePattern(ns))
	l.logger.Info().
		Str("namespace", ns).
		Uint64("version", v).
		Int("reclaimed", removed).
		Msg("Namespace invalidated")
	return v
}

func (l *Loader) observe(outcome string, start time.Time) {
	loadsTotal.WithLabelValues(outcome).Inc()
	loadDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// cacheGet treats a failing cache read as a miss.
func (l *Loader) cacheGet(key string) (val any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			softFailuresTotal.WithLabelValues("get").Inc()
			l.logger.Warn().
				Str("key", key).
				Str("panic", fmt.Sprint(r)).
				Msg("Cache get failed - falling through to producer")
			val, ok = nil, false
		}
	}()
	return l.cache.Get(key)
}

// cacheSet never lets a failing cache write fail the request.
func (l *Loader) cacheSet(key string, val any, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			softFailuresTotal.WithLabelValues("set").Inc()
			l.logger.Warn().
				Str("key", key).
				Str("panic", fmt.Sprint(r)).
				Msg("Cache set failed - serving uncached result")
		}
	}()
	l.cache.Set(key, val, ttl)
	l.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cached result")
}

// cacheDelete drops a key, ignoring a failing cache.
func (l *Loader) cacheDelete(key string) {
	defer func() {
		if r := recover(); r != nil {
			softFailuresTotal.WithLabelValues("delete").Inc()
			l.logger.Warn().
				Str("key", key).
				Str("panic", fmt.Sprint(r)).
				Msg("Cache delete failed")
		}
	}()
	l.cache.Delete(key)
}

// Get is the typed form of Load. A cached value of another type counts as a
// miss and is replaced.
func Get[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	isT := func(v any) bool {
		_, ok := v.(T)
		return ok
	}
	val, hit, err := l.load(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, isT)
	if err != nil {
		return zero, false, err
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false, fmt.Errorf("loaded value for %q has type %T", key, val)
	}
	return typed, hit, nil
}
