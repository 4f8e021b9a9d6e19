// Package coalesce collapses concurrent requests for the same key into a
// single producer invocation.
package coalesce

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single producer run.
const DefaultTimeout = 30 * time.Second

// Prometheus metrics for coalesced requests.
var (
	coalesceInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bistro_coalesce_inflight",
		Help: "Number of producer runs currently in flight",
	})

	coalesceSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_coalesce_shared_total",
		Help: "Total number of callers served by a result shared with other callers",
	})

	coalesceTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_coalesce_timeouts_total",
		Help: "Total number of producer runs that exceeded the timeout",
	})

	coalesceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_coalesce_producer_errors_total",
		Help: "Total number of producer runs that failed",
	})
)

// Producer computes the value for a key. It must be a repeatable read:
// one invocation serves every waiter.
type Producer func(ctx context.Context) (any, error)

// Config holds the coalescer configuration.
type Config struct {
	// Timeout bounds each producer run
	Timeout time.Duration
}

// DefaultConfig returns the default coalescer configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
	}
}

// Coalescer guarantees at most one in-flight producer per key.
type Coalescer struct {
	group   singleflight.Group
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a new coalescer.
func New(cfg Config, logger zerolog.Logger) *Coalescer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Coalescer{
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Dedupe runs producer for key unless a run is already in flight, in which case
// the caller waits for that run instead. Every waiter of one run receives the
// same value or the same error.
//
// The producer runs under its own context bounded by the coalescer timeout, so
// a caller giving up (ctx done) only affects that caller.
func (c *Coalescer) Dedupe(ctx context.Context, key string, producer Producer) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(ctx, key, producer)
	})

	select {
	case res := <-ch:
		if res.Shared {
			coalesceSharedTotal.Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		c.logger.Debug().
			Str("key", key).
			Err(ctx.Err()).
			Msg("Caller stopped waiting for coalesced request")
		return nil, ctx.Err()
	}
}

// Forget drops the in-flight registration for key; the next call starts a
// fresh run even if the previous one has not settled.
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}

// Timeout returns the per-run time budget.
func (c *Coalescer) Timeout() time.Duration {
	return c.timeout
}

type outcome struct {
	val any
	err error
}

func (c *Coalescer) run(parent context.Context, key string, producer Producer) (any, error) {
	coalesceInFlight.Inc()
	defer coalesceInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		val, err := producer(ctx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			coalesceErrorsTotal.Inc()
			c.logger.Warn().
				Err(out.err).
				Str("key", key).
				Dur("duration", time.Since(start)).
				Msg("Producer failed")
			return nil, &ProducerError{Key: key, Err: out.err}
		}
		c.logger.Debug().
			Str("key", key).
			Dur("duration", time.Since(start)).
			Msg("Producer completed")
		return out.val, nil
	case <-ctx.Done():
		coalesceTimeoutsTotal.Inc()
		c.logger.Error().
			Str("key", key).
			Dur("timeout", c.timeout).
			Msg("Producer timed out")
		return nil, fmt.Errorf("%w: key %q after %s", ErrTimeout, key, c.timeout)
	}
}

// Do is the typed form of Dedupe.
func Do[T any](ctx context.Context, c *Coalescer, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	val, err := c.Dedupe(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("coalesced value for %q has type %T", key, val)
	}
	return typed, nil
}
