// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides caching infrastructure with in-memory and Redis
// backends.
package cache

import (
	"context"
	"time"
)

// Cacher is the store-agnostic cache contract used by the settings
// cache and the month summary service. Values are opaque bytes so the
// memory and Redis backends are interchangeable; implementations must
// be safe for concurrent use.
type Cacher interface {
	// Get returns the value for key, or ErrCacheMiss when absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry owned by this cache.
	Clear(ctx context.Context) error

	// Has reports whether key holds an unexpired entry.
	Has(ctx context.Context, key string) (bool, error)

	Close() error
}

// StatsProvider is implemented by backends that track hit counters.
type StatsProvider interface {
	Stats() Stats
	ResetStats()
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hit_rate"`
	Size    int64   `json:"size_bytes,omitempty"`
}

// Error is a sentinel error string.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrCacheMiss   Error = "cache miss"
	ErrCacheClosed Error = "cache closed"
)
