// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"time"
)

// Options holds configuration for cache creation.
type Options struct {
	// RedisURL is the Redis connection URL. Empty selects the in-memory
	// backend.
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for the memory cache
	// (0 = unlimited).
	MaxSize int

	// CleanupInterval is the interval for expired entry cleanup.
	CleanupInterval time.Duration
}

// DefaultOptions returns default cache configuration.
func DefaultOptions() Options {
	return Options{
		DefaultTTL:      time.Hour,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// NewCache creates a cache based on the provided configuration. If a Redis
// URL is set but the connection fails, it falls back to the in-memory
// backend rather than refusing to start.
func NewCache(opts Options) Cacher {
	if opts.RedisURL != "" {
		c, err := NewRedisCacheFromURL(opts.RedisURL, opts.Prefix, opts.DefaultTTL)
		if err == nil {
			return c
		}
		slog.Warn("redis cache unavailable, falling back to memory",
			"category", "system",
			"error", err,
		)
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      opts.DefaultTTL,
		MaxSize:         opts.MaxSize,
		CleanupInterval: opts.CleanupInterval,
	})
}
