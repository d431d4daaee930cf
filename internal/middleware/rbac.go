// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/openledger/openledger/internal/model"
)

// roleLevel orders roles for the >= comparison in RequireRole.
// Unknown roles rank below member and never satisfy any requirement.
func roleLevel(role string) int {
	switch role {
	case model.RoleAdmin:
		return 2
	case model.RoleMember:
		return 1
	default:
		return 0
	}
}

// RequireRole guards page routes behind a minimum role. Requests with no
// authenticated user are redirected to /login; authenticated users below
// the required role are redirected to the dashboard.
func RequireRole(minRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if roleLevel(user.Role) < roleLevel(minRole) {
				slog.Warn("role check failed",
					"user_id", user.ID,
					"role", user.Role,
					"required", minRole,
					"path", r.URL.Path)
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(model.RoleAdmin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)
}
