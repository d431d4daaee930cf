// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is the in-process Cacher backend, used when no Redis
// URL is configured or Redis is unreachable at startup.
type MemoryCache struct {
	entries    sync.Map // string -> *memEntry
	defaultTTL time.Duration
	maxEntries int
	stop       chan struct{}
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	bytes  atomic.Int64
}

type memEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache. A zero MaxSize means
// unlimited entries; a zero CleanupInterval disables the sweeper.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// NewMemoryCache creates a memory cache and, when a cleanup interval is
// given, starts a background sweep of expired entries.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxSize,
		stop:       make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}
	return c
}

// Get returns a copy of the stored value, or ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	e := c.lookup(key)
	if e == nil {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if c.maxEntries > 0 && c.count() >= c.maxEntries {
		c.sweep()
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	e := &memEntry{val: buf, expiresAt: time.Now().Add(ttl)}

	if old, loaded := c.entries.Swap(key, e); loaded {
		c.bytes.Add(-int64(len(old.(*memEntry).val)))
	}
	c.bytes.Add(int64(len(buf)))
	c.sets.Add(1)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.evict(key)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
	c.bytes.Store(0)
	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	return c.lookup(key) != nil, nil
}

// DeleteByPrefix removes every key starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.entries.Range(func(key, _ any) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			c.evict(k)
		}
		return true
	})
	return nil
}

// Close stops the sweeper. Further calls on the cache return
// ErrCacheClosed.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stop)
	}
	return nil
}

// Stats returns hit/miss counters accumulated since creation or the
// last ResetStats.
func (c *MemoryCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Items:   c.count(),
		HitRate: hitRate,
		Size:    c.bytes.Load(),
	}
}

func (c *MemoryCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
}

// lookup returns the live entry for key, evicting it if expired.
func (c *MemoryCache) lookup(key string) *memEntry {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil
	}
	e := v.(*memEntry)
	if time.Now().After(e.expiresAt) {
		c.evict(key)
		return nil
	}
	return e
}

func (c *MemoryCache) evict(key string) {
	if v, loaded := c.entries.LoadAndDelete(key); loaded {
		c.bytes.Add(-int64(len(v.(*memEntry).val)))
	}
}

func (c *MemoryCache) count() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *MemoryCache) sweep() {
	now := time.Now()
	c.entries.Range(func(key, v any) bool {
		if now.After(v.(*memEntry).expiresAt) {
			c.evict(key.(string))
		}
		return true
	})
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
