// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the server-side session manager and provides
// a read-only resolver that maps request cookies to users.
package session

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// KeyUserID is the session key holding the authenticated user's ID.
const KeyUserID = "user_id"

// Config holds session configuration. CookieNames are the ordered candidate
// cookie names the resolver will try; the first entry is the primary name
// used when writing the session cookie.
type Config struct {
	Secret      string
	CookieNames []string
}

// DefaultConfig returns the session configuration for the given environment.
// Both environments carry an ordered candidate list so a cookie written
// under the previous name still resolves after a mode switch. Production
// uses the __Host- prefix and falls back to the bare name; development
// uses the bare name and falls back to the dev-suffixed one.
func DefaultConfig(secret string, isDev bool) Config {
	if isDev {
		return Config{
			Secret:      secret,
			CookieNames: []string{"session", "session_dev"},
		}
	}
	return Config{
		Secret:      secret,
		CookieNames: []string{"__Host-session", "session"},
	}
}

// New creates a session manager backed by the SQLite sessions table.
func New(db *sql.DB, cfg Config, isDev bool) (*scs.SessionManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if len(cfg.CookieNames) == 0 {
		return nil, errors.New("at least one cookie name is required")
	}

	sm := scs.New()

	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.Cookie.Name = cfg.CookieNames[0]
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm, nil
}
