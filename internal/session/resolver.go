// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

// Resolver maps a request's session cookie to a user. It is strictly
// read-only: no token renewal, rotation, or persistence happens here, so
// it is safe to call on any request without touching session state.
type Resolver struct {
	sessions    scs.Store
	codec       scs.Codec
	queries     *store.Queries
	cookieNames []string
}

// NewResolver creates a resolver sharing the session manager's store and
// codec. cookieNames are tried in order; the first cookie whose token
// yields a live session with a user_id wins and later candidates are not
// attempted.
func NewResolver(sm *scs.SessionManager, db *sql.DB, cfg Config) *Resolver {
	return &Resolver{
		sessions:    sm.Store,
		codec:       sm.Codec,
		queries:     store.New(db),
		cookieNames: cfg.CookieNames,
	}
}

// Resolve returns the user owning the request's session, if any. Absent,
// expired, or malformed sessions under every candidate cookie name yield
// (nil, false); Resolve never returns an error.
func (rs *Resolver) Resolve(r *http.Request) (*model.User, bool) {
	for _, name := range rs.cookieNames {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			continue
		}

		b, found, err := rs.sessions.Find(cookie.Value)
		if err != nil || !found {
			continue
		}

		deadline, values, err := rs.codec.Decode(b)
		if err != nil || time.Now().After(deadline) {
			continue
		}

		userID, ok := values[KeyUserID].(int64)
		if !ok || userID == 0 {
			continue
		}

		// This candidate produced a session with an identity; the outcome
		// is final even if the user row is gone.
		user, err := rs.queries.GetUser(r.Context(), userID)
		if err != nil {
			return nil, false
		}
		return &user, true
	}

	return nil, false
}
