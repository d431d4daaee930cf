// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"

	"github.com/openledger/openledger/internal/model"
)

// SessionResolver maps a request to an authenticated user, if any.
// Implementations must be read-only and must never return an error:
// absence is a normal outcome.
type SessionResolver interface {
	Resolve(r *http.Request) (*model.User, bool)
}

// Gate composes the route classifier and the session resolver into the
// global access middleware. Public, auth-API, and static routes pass
// through without touching the session store. Protected routes resolve the
// session: present, the user is attached to the request context; absent,
// the request is redirected to /login with 303 and no return-URL
// parameter (avoids redirect loops).
func Gate(classify func(string) Class, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classify(r.URL.Path) {
			case ClassPublic, ClassAuthAPI, ClassStatic:
				next.ServeHTTP(w, r)
				return
			}

			user, ok := resolver.Resolve(r)
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, WithUser(r, *user))
		})
	}
}
