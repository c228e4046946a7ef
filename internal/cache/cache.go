// Package cache memoizes expensive statistics computations with TTL and
// change-based invalidation. computeFn is assumed pure given its inputs,
// so a duplicate computation on a read race is acceptable and no stampede
// guard is used.
package cache

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/metrics"
)

// Fingerprint summarizes the inputs a cached value was computed from.
// Drift beyond the configured thresholds invalidates the entry.
type Fingerprint struct {
	TraceCount      int
	MessageCount    int64
	MonitoredTopics []string // sorted
}

// NewFingerprint builds a fingerprint, sorting the topic set.
func NewFingerprint(traceCount int, messageCount int64, monitored []string) Fingerprint {
	topics := append([]string(nil), monitored...)
	sort.Strings(topics)
	return Fingerprint{
		TraceCount:      traceCount,
		MessageCount:    messageCount,
		MonitoredTopics: topics,
	}
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// Cache memoizes a single value of type T keyed by fingerprint drift and
// TTL. The stored value is a deep copy and every hit returns a fresh copy,
// so callers can never corrupt cached state.
type Cache[T any] struct {
	name         string
	ttl          time.Duration
	traceRatio   float64 // relative trace-count drift that invalidates
	messageDelta int64   // absolute message-count drift that invalidates
	clone        func(T) T
	now          func() time.Time

	mu         sync.Mutex
	value      T
	fp         Fingerprint
	computedAt time.Time
	valid      bool

	stale  atomic.Bool
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache. name labels the metrics; clone must return a deep
// copy of the value.
func New[T any](name string, ttl time.Duration, traceRatio float64, messageDelta int64, clone func(T) T) *Cache[T] {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if traceRatio <= 0 {
		traceRatio = 0.10
	}
	if messageDelta <= 0 {
		messageDelta = 50
	}
	return &Cache[T]{
		name:         name,
		ttl:          ttl,
		traceRatio:   traceRatio,
		messageDelta: messageDelta,
		clone:        clone,
		now:          time.Now,
	}
}

// GetOrCompute returns the cached value when it is still fresh for fp,
// otherwise it calls computeFn once and stores a copy of the result.
// Compute errors propagate uncached; no stale fallback is served.
func (c *Cache[T]) GetOrCompute(fp Fingerprint, computeFn func() (T, error)) (T, error) {
	c.mu.Lock()
	if c.valid && !c.stale.Load() && !c.expired() && !c.drifted(fp) {
		v := c.clone(c.value)
		c.mu.Unlock()
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues(c.name).Inc()
		return v, nil
	}
	c.mu.Unlock()

	c.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(c.name).Inc()

	value, err := computeFn()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.value = c.clone(value)
	c.fp = fp
	c.computedAt = c.now()
	c.valid = true
	c.stale.Store(false)
	c.mu.Unlock()

	return value, nil
}

// MarkStale forces the next read to recompute. The ingestion path calls
// this every Nth record instead of on every record, trading bounded
// staleness for reduced overhead.
func (c *Cache[T]) MarkStale() {
	c.stale.Store(true)
}

// Invalidate drops the cached value entirely.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Stats returns hit/miss counters and the hit ratio.
func (c *Cache[T]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRatio = float64(hits) / float64(total)
	}
	return s
}

func (c *Cache[T]) expired() bool {
	return c.now().Sub(c.computedAt) > c.ttl
}

// drifted reports whether fp moved beyond the thresholds relative to the
// fingerprint the cached value was computed from.
func (c *Cache[T]) drifted(fp Fingerprint) bool {
	if !equalTopics(c.fp.MonitoredTopics, fp.MonitoredTopics) {
		return true
	}
	if math.Abs(float64(fp.MessageCount-c.fp.MessageCount)) >= float64(c.messageDelta) {
		return true
	}

	delta := math.Abs(float64(fp.TraceCount - c.fp.TraceCount))
	if c.fp.TraceCount == 0 {
		return delta > 0
	}
	return delta/float64(c.fp.TraceCount) >= c.traceRatio
}

func equalTopics(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
