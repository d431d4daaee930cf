// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"sync"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

// SettingsCache provides cached access to site settings. All settings are
// loaded once and served from memory, invalidated on any change.
type SettingsCache struct {
	queries *store.Queries
	mu      sync.RWMutex
	loaded  bool
	all     map[string]model.Config
}

// NewSettingsCache creates a new settings cache.
func NewSettingsCache(queries *store.Queries) *SettingsCache {
	return &SettingsCache{
		queries: queries,
		all:     make(map[string]model.Config),
	}
}

// Get retrieves a settings value by key. Returns empty string if not found.
func (c *SettingsCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	if c.loaded {
		cfg, ok := c.all[key]
		c.mu.RUnlock()
		if ok {
			return cfg.Value, nil
		}
		return "", nil
	}
	c.mu.RUnlock()

	if err := c.loadAll(ctx); err != nil {
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if cfg, ok := c.all[key]; ok {
		return cfg.Value, nil
	}
	return "", nil
}

// All returns all settings values.
func (c *SettingsCache) All(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	if !c.loaded {
		c.mu.RUnlock()
		if err := c.loadAll(ctx); err != nil {
			return nil, err
		}
		c.mu.RLock()
	}
	defer c.mu.RUnlock()

	result := make(map[string]string, len(c.all))
	for key, cfg := range c.all {
		result[key] = cfg.Value
	}
	return result, nil
}

func (c *SettingsCache) loadAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.loaded {
		return nil
	}

	configs, err := c.queries.ListConfig(ctx)
	if err != nil {
		return err
	}

	c.all = make(map[string]model.Config, len(configs))
	for _, cfg := range configs {
		c.all[cfg.Key] = cfg
	}
	c.loaded = true

	return nil
}

// Invalidate clears the cache, forcing a reload on next access.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.all = make(map[string]model.Config)
}

// Preload loads all settings into cache, for warming up on startup.
func (c *SettingsCache) Preload(ctx context.Context) error {
	return c.loadAll(ctx)
}
