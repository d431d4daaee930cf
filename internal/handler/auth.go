// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/openledger/openledger/internal/auth"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/session"
	"github.com/openledger/openledger/internal/store"
)

// MinPasswordLength is the minimum accepted password length for new accounts.
const MinPasswordLength = 10

// AuthHandler handles authentication routes.
type AuthHandler struct {
	queries         *store.Queries
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *sql.DB, renderer *render.Renderer, sm *scs.SessionManager, es *service.EventService, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		queries:         store.New(db),
		renderer:        renderer,
		sessionManager:  sm,
		eventService:    es,
		loginProtection: lp,
	}
}

// LoginForm renders the login page. Already-authenticated users are sent
// to the dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if userID := h.sessionManager.GetInt64(r.Context(), session.KeyUserID); userID > 0 {
		http.Redirect(w, r, redirectRoot, http.StatusSeeOther)
		return
	}

	if err := h.renderer.Render(w, r, "auth/login", render.TemplateData{
		Title: "Sign in",
	}); err != nil {
		logAndInternalError(w, "failed to render login page", "error", err)
	}
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectLogin) {
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" || password == "" {
		flashError(w, r, h.renderer, redirectLogin, "Email and password are required")
		return
	}

	// Check if account is locked
	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login attempt on locked account", nil, r, map[string]any{"email": email})
			flashError(w, r, h.renderer, redirectLogin, "Account temporarily locked. Try again in "+formatDuration(remaining))
			return
		}
	}

	user, err := h.queries.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("login attempt for non-existent user", "email", email)
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login failed: user not found", nil, r, map[string]any{"email": email})
		} else {
			slog.Error("database error during login", "error", err)
		}
		// Record failed attempt even for non-existent users to prevent enumeration
		h.recordFailure(w, r, email)
		return
	}

	valid, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		slog.Error("password check error", "error", err)
		flashError(w, r, h.renderer, redirectLogin, "Invalid email or password")
		return
	}

	if !valid {
		slog.Debug("invalid password attempt", "email", email)
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login failed: invalid password", &user.ID, r, map[string]any{"email": email})
		h.recordFailure(w, r, email)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}

	// Re-hash password if it uses outdated parameters
	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			if err := h.queries.UpdateUserPassword(r.Context(), user.ID, newHash, time.Now()); err != nil {
				slog.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			} else {
				slog.Info("password re-hashed with updated parameters", "user_id", user.ID)
			}
		}
	}

	if err := h.queries.TouchUserLogin(r.Context(), user.ID, time.Now()); err != nil {
		// Don't block login on this
		slog.Error("failed to update last login time", "error", err, "user_id", user.ID)
	}

	// Regenerate session ID to prevent session fixation
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}

	h.sessionManager.Put(r.Context(), session.KeyUserID, user.ID)

	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)
	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged in", &user.ID, r, map[string]any{"email": user.Email})

	flashSuccess(w, r, h.renderer, redirectRoot, "Welcome back, "+user.Name)
}

// recordFailure records a failed attempt and flashes the right message.
func (h *AuthHandler) recordFailure(w http.ResponseWriter, r *http.Request, email string) {
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(email); locked {
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Account locked due to failed attempts", nil, r, map[string]any{"email": email, "duration": lockDuration.String()})
			flashError(w, r, h.renderer, redirectLogin, "Too many failed attempts. Account locked for "+formatDuration(lockDuration))
			return
		}
		remaining := h.loginProtection.GetRemainingAttempts(email)
		if remaining <= 3 && remaining > 0 {
			flashError(w, r, h.renderer, redirectLogin, fmt.Sprintf("Invalid email or password. %d attempts remaining", remaining))
			return
		}
	}
	flashError(w, r, h.renderer, redirectLogin, "Invalid email or password")
}

// Logout destroys the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), session.KeyUserID)

	if userID > 0 {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged out", &userID, r, nil)
	}

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
	}

	slog.Info("user logged out", "user_id", userID)
	http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
}

// InviteLanding resolves an invite token from the path and forwards to the
// registration form.
func (h *AuthHandler) InviteLanding(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, RouteRegister+"?token="+url.QueryEscape(token), http.StatusSeeOther)
}

// registerPageData is the view model for the registration form.
type registerPageData struct {
	Token string
	Email string
}

// RegisterForm renders the invite-gated registration page. An invalid or
// used token lands on the login page with an explanation.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	invite, ok := h.usableInvite(w, r, token)
	if !ok {
		return
	}

	if err := h.renderer.Render(w, r, "auth/register", render.TemplateData{
		Title: "Create account",
		Data: registerPageData{
			Token: token,
			Email: invite.Email,
		},
	}); err != nil {
		logAndInternalError(w, "failed to render register page", "error", err)
	}
}

// Register handles the registration form submission.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectLogin) {
		return
	}

	token := r.FormValue("token")
	invite, ok := h.usableInvite(w, r, token)
	if !ok {
		return
	}

	registerURL := RouteRegister + "?token=" + url.QueryEscape(token)

	email := r.FormValue("email")
	if invite.Email != "" {
		// Token was issued for a specific address
		email = invite.Email
	}
	name := r.FormValue("name")
	password := r.FormValue("password")

	if email == "" || name == "" || password == "" {
		flashError(w, r, h.renderer, registerURL, "All fields are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		flashError(w, r, h.renderer, registerURL, "Invalid email address")
		return
	}
	if len(password) < MinPasswordLength {
		flashError(w, r, h.renderer, registerURL, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
		return
	}

	if _, err := h.queries.GetUserByEmail(r.Context(), email); err == nil {
		flashError(w, r, h.renderer, redirectLogin, "An account with this email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logAndInternalError(w, "failed to check existing user", "error", err)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logAndInternalError(w, "failed to hash password", "error", err)
		return
	}

	now := time.Now()
	user, err := h.queries.CreateUser(r.Context(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         invite.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		logAndInternalError(w, "failed to create user", "error", err)
		return
	}

	if err := h.queries.MarkInviteUsed(r.Context(), invite.ID, now); err != nil {
		slog.Error("failed to mark invite used", "error", err, "invite_id", invite.ID)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email, "role", user.Role)
	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "User registered via invite", &user.ID, r, map[string]any{"email": user.Email, "invite_id": invite.ID})

	// Log the new user straight in
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}
	h.sessionManager.Put(r.Context(), session.KeyUserID, user.ID)

	flashSuccess(w, r, h.renderer, redirectRoot, "Welcome to OpenLedger, "+user.Name)
}

// usableInvite loads and validates an invite token. On failure it has
// already redirected and returns ok=false.
func (h *AuthHandler) usableInvite(w http.ResponseWriter, r *http.Request, token string) (model.Invite, bool) {
	if token == "" {
		flashError(w, r, h.renderer, redirectLogin, "Registration requires an invite")
		return model.Invite{}, false
	}

	invite, err := h.queries.GetInviteByToken(r.Context(), token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("failed to load invite", "error", err)
		}
		flashError(w, r, h.renderer, redirectLogin, "Invalid or expired invite")
		return model.Invite{}, false
	}

	if !invite.Usable(time.Now()) {
		flashError(w, r, h.renderer, redirectLogin, "Invalid or expired invite")
		return model.Invite{}, false
	}

	return invite, true
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
