// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// LoginProtection combines per-IP rate limiting with per-account
// lockout for the login form. IP limiting answers fast floods; the
// lockout slows credential stuffing against a single account.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu       sync.RWMutex
	failures map[string]*failureRecord

	maxFailures     int
	lockoutDuration time.Duration
	window          time.Duration
}

// failureRecord tracks failed logins for one account. lockCount
// drives the exponential backoff of successive lockouts.
type failureRecord struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
	lockCount   int
}

// LoginProtectionConfig holds tunables for NewLoginProtection. Zero
// values fall back to the defaults.
type LoginProtectionConfig struct {
	IPRateLimit       float64 // requests per second per IP
	IPBurst           int
	MaxFailedAttempts int
	LockoutDuration   time.Duration // base, doubles per lockout
	AttemptWindow     time.Duration
}

// DefaultLoginProtectionConfig allows one login POST per two seconds
// per IP and locks an account for 15 minutes after 5 failures.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection builds the protection state and starts its
// background cleanup.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:      newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		failures:        make(map[string]*failureRecord),
		maxFailures:     cfg.MaxFailedAttempts,
		lockoutDuration: cfg.LockoutDuration,
		window:          cfg.AttemptWindow,
	}
	go lp.cleanupLoop()
	return lp
}

// CheckIPRateLimit reports whether a login POST from ip may proceed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether the account is locked and for how
// much longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	lp.mu.RLock()
	rec := lp.failures[email]
	lp.mu.RUnlock()

	if rec == nil || !time.Now().Before(rec.lockedUntil) {
		return false, 0
	}
	return true, time.Until(rec.lockedUntil)
}

// RecordFailedAttempt counts a failed login. When the failure count
// reaches the limit inside the window the account is locked and the
// lock duration is returned; each further lockout doubles it, capped
// at 24 hours.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	now := time.Now()
	rec := lp.failures[email]

	switch {
	case rec == nil:
		rec = &failureRecord{count: 1, firstFailed: now}
		lp.failures[email] = rec
	case now.Sub(rec.firstFailed) > lp.window:
		rec.count = 1
		rec.firstFailed = now
	default:
		rec.count++
	}
	slog.Debug("login attempt recorded", "email", email, "count", rec.count)

	if rec.count < lp.maxFailures {
		return false, 0
	}

	lock := lp.lockoutDuration
	for i := 0; i < rec.lockCount && lock < 24*time.Hour; i++ {
		lock *= 2
	}
	if lock > 24*time.Hour {
		lock = 24 * time.Hour
	}

	rec.lockedUntil = now.Add(lock)
	rec.lockCount++
	rec.count = 0

	slog.Warn("account locked due to failed attempts",
		"email", email,
		"lockouts", rec.lockCount,
		"duration", lock,
	)
	return true, lock
}

// RecordSuccessfulLogin drops failure tracking for the account.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	lp.mu.Lock()
	delete(lp.failures, email)
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many failures remain before the
// account locks.
func (lp *LoginProtection) GetRemainingAttempts(email string) int {
	lp.mu.RLock()
	rec := lp.failures[email]
	lp.mu.RUnlock()

	if rec == nil || time.Since(rec.firstFailed) > lp.window {
		return lp.maxFailures
	}
	if remaining := lp.maxFailures - rec.count; remaining > 0 {
		return remaining
	}
	return 0
}

func (lp *LoginProtection) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		lp.removeStale()
	}
}

func (lp *LoginProtection) removeStale() {
	now := time.Now()

	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared IP rate limiters due to size")
	}

	lp.mu.Lock()
	for email, rec := range lp.failures {
		if now.After(rec.lockedUntil) && now.Sub(rec.firstFailed) > lp.window {
			delete(lp.failures, email)
		}
	}
	lp.mu.Unlock()
}

// Middleware rate limits login POSTs by client IP. GET requests for
// the form pass through untouched.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "ip", ip)
				http.Error(w, "Too many login attempts. Please wait and try again.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
