// Package cache provides the caching primitives used by gfx: a frame-aged
// cache for GPU objects (pipelines, bind groups) and a sharded LRU for
// CPU-side memoization (shader reflection).
package cache

import (
	"errors"
	"sync"
)

// Frame cache defaults. Lifetimes are measured in Cycle() calls, which the
// owning context invokes once per frame.
const (
	// DefaultLifetime is the number of idle frames before an entry is
	// evicted by Cycle().
	DefaultLifetime = 50

	// DefaultEmergencyLifetime is the tighter age bound used by the
	// emergency sweep when the cache is at capacity.
	DefaultEmergencyLifetime = 8

	// DefaultFrameCapacity is the maximum number of live entries.
	DefaultFrameCapacity = 1024
)

// ErrSaturated is returned by Put when the cache is at capacity and the
// emergency sweep found no entry old enough to evict. Every entry was
// inserted or touched within EmergencyLifetime frames, which means the
// caller is generating more distinct keys per frame than the cache can
// hold. That is a key-generation bug or an unbounded variant explosion
// upstream, not a transient condition.
var ErrSaturated = errors.New("cache: saturated, no entry eligible for emergency eviction")

// FrameConfig configures a FrameCache.
type FrameConfig struct {
	// Lifetime is the idle age at which Cycle() evicts an entry.
	Lifetime uint32

	// EmergencyLifetime is the idle age at which the capacity sweep
	// evicts an entry. Must be <= Lifetime to be useful.
	EmergencyLifetime uint32

	// Capacity is the maximum number of entries.
	Capacity int
}

// DefaultFrameConfig returns the default frame cache configuration.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Lifetime:          DefaultLifetime,
		EmergencyLifetime: DefaultEmergencyLifetime,
		Capacity:          DefaultFrameCapacity,
	}
}

// frameEntry pairs a cached value with its idle age in frames.
type frameEntry[V any] struct {
	value V
	age   uint32
}

// FrameCache is a hash-keyed cache with frame-based aging.
//
// Get resets the entry's age to zero. Cycle() increments every age and
// evicts entries whose age reached the configured lifetime, so an entry
// survives as long as it is hit at least once per lifetime window. Put
// enforces the capacity bound: at capacity it first sweeps entries whose
// age reached the emergency lifetime, and fails with ErrSaturated if the
// sweep frees nothing.
//
// FrameCache is safe for concurrent use, though the intended usage is a
// single render thread interleaving Get/Put with a per-frame Cycle().
type FrameCache[V any] struct {
	mu      sync.Mutex
	entries map[uint64]*frameEntry[V]
	cfg     FrameConfig

	// onEvict, when set, is called for every value dropped from the
	// cache (Cycle eviction, emergency sweep, Clear). Used to destroy
	// backend objects. Called with the cache lock held; must not call
	// back into the cache.
	onEvict func(V)
}

// NewFrame creates a frame-aged cache with the given configuration.
// Zero-valued config fields fall back to the package defaults.
func NewFrame[V any](cfg FrameConfig) *FrameCache[V] {
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.EmergencyLifetime == 0 {
		cfg.EmergencyLifetime = DefaultEmergencyLifetime
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultFrameCapacity
	}
	return &FrameCache[V]{
		entries: make(map[uint64]*frameEntry[V]),
		cfg:     cfg,
	}
}

// SetEvictFunc registers a callback invoked for every evicted value.
func (c *FrameCache[V]) SetEvictFunc(fn func(V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the cached value for key and resets its age to zero.
func (c *FrameCache[V]) Get(key uint64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.age = 0
	return e.value, true
}

// Put inserts a value with age zero. An existing entry under the same key
// is replaced (and reported to the evict callback). At capacity, entries
// whose age reached EmergencyLifetime are swept first; if the cache is
// still full, Put returns ErrSaturated and the value is not inserted.
func (c *FrameCache[V]) Put(key uint64, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.evict(e.value)
		e.value = value
		e.age = 0
		return nil
	}

	if len(c.entries) >= c.cfg.Capacity {
		c.sweep(c.cfg.EmergencyLifetime)
		if len(c.entries) >= c.cfg.Capacity {
			return ErrSaturated
		}
	}

	c.entries[key] = &frameEntry[V]{value: value}
	return nil
}

// Cycle advances the frame clock: entries whose age reached the lifetime
// are evicted, then every surviving entry's age is incremented. The owning
// context calls this once per frame; it is the only path that reclaims
// idle entries outside of capacity pressure.
func (c *FrameCache[V]) Cycle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(c.cfg.Lifetime)
	for _, e := range c.entries {
		e.age++
	}
}

// sweep evicts entries with age >= bound. Caller holds the lock.
func (c *FrameCache[V]) sweep(bound uint32) {
	for key, e := range c.entries {
		if e.age >= bound {
			c.evict(e.value)
			delete(c.entries, key)
		}
	}
}

// evict reports a dropped value to the callback. Caller holds the lock.
func (c *FrameCache[V]) evict(v V) {
	if c.onEvict != nil {
		c.onEvict(v)
	}
}

// Len returns the number of live entries.
func (c *FrameCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Config returns the cache configuration.
func (c *FrameCache[V]) Config() FrameConfig {
	return c.cfg
}

// Clear evicts every entry.
func (c *FrameCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		c.evict(e.value)
		delete(c.entries, key)
	}
}
