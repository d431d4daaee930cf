// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"LEDGER_DB_PATH" envDefault:"./data/openledger.db"`
	SessionSecret string `env:"LEDGER_SESSION_SECRET,required"`
	ServerHost    string `env:"LEDGER_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"LEDGER_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"LEDGER_ENV" envDefault:"development"`
	LogLevel      string `env:"LEDGER_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL     string `env:"LEDGER_REDIS_URL"`                         // Optional Redis URL for shared caching
	CachePrefix  string `env:"LEDGER_CACHE_PREFIX" envDefault:"ledger:"` // Redis key prefix
	CacheTTL     int    `env:"LEDGER_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"LEDGER_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// GeoIP configuration
	GeoIPDBPath string `env:"LEDGER_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Push notification delivery
	PushSigningSecret string `env:"LEDGER_PUSH_SIGNING_SECRET"` // HMAC key for delivery signatures; session secret is used when empty

	// Seeding configuration
	DoSeed bool `env:"LEDGER_DO_SEED" envDefault:"false"` // Enable database seeding
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// PushSecret returns the HMAC key used to sign push deliveries.
func (c Config) PushSecret() string {
	if c.PushSigningSecret != "" {
		return c.PushSigningSecret
	}
	return c.SessionSecret
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
// A missing or weak session secret is a startup failure, never a silent
// fall-through to anonymous requests.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("LEDGER_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("LEDGER_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("LEDGER_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
