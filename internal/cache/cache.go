// SPDX-License-Identifier: MIT

// Package cache provides byte-oriented TTL caches backed by process memory
// or Redis. Callers own the encoding of the values they store.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL key/value store safe for concurrent use. Failures of a
// remote backend surface as misses, never as errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Stats() CacheStats
	Close() error
}

// CacheStats is a point-in-time snapshot of cache counters. Evictions only
// counts entries removed by expiry sweeps.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type counters struct {
	hits, misses, sets, evictions atomic.Int64
}

func (c *counters) snapshot(size int) CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// Observe passes a Stats snapshot of c to report every interval until ctx
// is done.
func Observe(ctx context.Context, c Cache, every time.Duration, report func(CacheStats)) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		report(c.Stats())
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

type item struct {
	value   []byte
	expires time.Time
}

type memoryCache struct {
	mu    sync.RWMutex
	items map[string]item
	stats counters

	// sweeper lifecycle; nil when no sweep interval was configured
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache returns an in-process cache. With a positive sweep
// interval a background goroutine drops expired items until Close.
func NewMemoryCache(sweep time.Duration) Cache {
	c := &memoryCache{items: make(map[string]item)}
	if sweep > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.sweepLoop(sweep)
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(it.expires) {
		c.stats.hits.Add(1)
		return it.value, true
	}
	c.stats.misses.Add(1)
	return nil, false
}

// Set keeps its own copy of value.
func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	it := item{value: append([]byte(nil), value...), expires: time.Now().Add(ttl)}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	c.stats.sets.Add(1)
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return c.stats.snapshot(n)
}

func (c *memoryCache) sweepLoop(every time.Duration) {
	defer close(c.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			c.sweep(now)
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if !now.Before(it.expires) {
			delete(c.items, k)
			c.stats.evictions.Add(1)
		}
	}
}

// Close stops the sweeper and waits for it. It is safe to call repeatedly.
func (c *memoryCache) Close() error {
	if c.stop == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
	return nil
}

type noOpCache struct{}

// NewNoOpCache returns a Cache that stores nothing.
func NewNoOpCache() Cache { return noOpCache{} }

func (noOpCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (noOpCache) Delete(context.Context, string)                     {}
func (noOpCache) Stats() CacheStats                                  { return CacheStats{} }
func (noOpCache) Close() error                                       { return nil }
