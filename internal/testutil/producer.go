// Package testutil provides testing utilities for the caching layer.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// GatedProducer is an instrumented producer that blocks until released.
// It counts invocations so tests can assert how many backend computations ran.
type GatedProducer struct {
	calls   atomic.Int64
	started chan struct{}
	release chan struct{}
	once    sync.Once
	relOnce sync.Once

	// Value is returned by every invocation
	Value any

	// Err, when set, is returned instead of Value
	Err error

	// IgnoreContext keeps the producer blocked even after its context is done
	IgnoreContext bool
}

// NewGatedProducer creates a producer returning value once released.
func NewGatedProducer(value any) *GatedProducer {
	return &GatedProducer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		Value:   value,
	}
}

// Produce implements the producer signature used by the coalescer.
func (p *GatedProducer) Produce(ctx context.Context) (any, error) {
	p.calls.Add(1)
	p.once.Do(func() { close(p.started) })

	if p.IgnoreContext {
		<-p.release
	} else {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.Err != nil {
		return nil, p.Err
	}
	return p.Value, nil
}

// Started is closed on the first invocation.
func (p *GatedProducer) Started() <-chan struct{} {
	return p.started
}

// WaitStarted blocks until the first invocation or the timeout.
func (p *GatedProducer) WaitStarted(timeout time.Duration) bool {
	select {
	case <-p.started:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Release unblocks every pending and future invocation.
func (p *GatedProducer) Release() {
	p.relOnce.Do(func() { close(p.release) })
}

// Calls returns the number of invocations so far.
func (p *GatedProducer) Calls() int64 {
	return p.calls.Load()
}
