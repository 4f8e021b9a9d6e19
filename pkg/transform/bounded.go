// Package transform provides a fixed-capacity cache for derived binary
// artifacts such as resized image variants.
//
// Eviction is strictly first-in first-out: when an insert would exceed the
// capacity, the oldest inserted entry is removed. Reads do not refresh an
// entry's position.
package transform

import (
	"container/list"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of variants kept when no capacity is given.
const DefaultCapacity = 100

var (
	transformHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_transform_cache_hits_total",
		Help: "Total number of derived artifact cache hits",
	})

	transformMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_transform_cache_misses_total",
		Help: "Total number of derived artifact cache misses",
	})

	transformEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_transform_cache_evictions_total",
		Help: "Total number of derived artifacts evicted for capacity",
	})

	transformFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_transform_compute_failures_total",
		Help: "Total number of failed artifact computations",
	})

	transformEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bistro_transform_cache_entries",
		Help: "Current number of resident derived artifacts",
	})
)

// Entry is a cached derived artifact.
type Entry struct {
	Key     string
	Payload []byte

	// Seq is the insertion sequence number; eviction follows it
	Seq uint64
}

// BoundedCache is a FIFO cache of derived artifacts with a fixed entry cap.
type BoundedCache struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	order    *list.List // *Entry, oldest at front
	index    map[string]*list.Element
	logger   zerolog.Logger
}

// New creates a cache holding at most capacity entries.
func New(capacity int, logger zerolog.Logger) *BoundedCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BoundedCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
		logger:   logger,
	}
}

// Key builds a cache key from a source identity and variant parameters.
func Key(source, variant string) string {
	return source + ":" + variant
}

// GetOrCompute returns the cached payload for key, computing and storing it on
// a miss. A failed computation is not cached and its error is returned.
func (c *BoundedCache) GetOrCompute(key string, compute func() ([]byte, error)) ([]byte, error) {
	if payload, ok := c.Get(key); ok {
		return payload, nil
	}

	payload, err := compute()
	if err != nil {
		transformFailures.Inc()
		c.logger.Debug().Err(err).Str("key", key).Msg("Artifact computation failed")
		return nil, err
	}

	c.Put(key, payload)
	return payload, nil
}

// Get returns the cached payload for key.
func (c *BoundedCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		transformHits.Inc()
		return el.Value.(*Entry).Payload, true
	}
	transformMisses.Inc()
	return nil, false
}

// Put stores payload under key, evicting the oldest entries while over
// capacity. Replacing an existing key keeps its insertion position.
func (c *BoundedCache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*Entry).Payload = payload
		return
	}

	c.seq++
	c.index[key] = c.order.PushBack(&Entry{Key: key, Payload: payload, Seq: c.seq})

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		entry := c.order.Remove(oldest).(*Entry)
		delete(c.index, entry.Key)
		transformEvictions.Inc()
		c.logger.Debug().
			Str("key", entry.Key).
			Uint64("seq", entry.Seq).
			Msg("Evicted oldest artifact")
	}
	transformEntries.Set(float64(c.order.Len()))
}

// Clear removes every entry whose key contains pattern as a literal substring,
// or all entries when pattern is empty. It returns the number removed.
func (c *BoundedCache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := c.order.Len()
		c.order.Init()
		c.index = make(map[string]*list.Element, c.capacity)
		transformEntries.Set(0)
		return n
	}

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*Entry)
		if strings.Contains(entry.Key, pattern) {
			c.order.Remove(el)
			delete(c.index, entry.Key)
			removed++
		}
		el = next
	}
	transformEntries.Set(float64(c.order.Len()))
	return removed
}

// Len returns the number of resident entries.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured entry cap.
func (c *BoundedCache) Capacity() int {
	return c.capacity
}

// Keys returns resident keys, oldest first.
func (c *BoundedCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return keys
}
