// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
)

// InviteValidity is how long a new invite can be redeemed.
const InviteValidity = 7 * 24 * time.Hour

// UserHandler manages household members and invites. All routes are
// admin-only.
type UserHandler struct {
	queries      *store.Queries
	renderer     *render.Renderer
	settings     *cache.SettingsCache
	eventService *service.EventService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, es *service.EventService) *UserHandler {
	return &UserHandler{
		queries:      store.New(db),
		renderer:     renderer,
		settings:     settings,
		eventService: es,
	}
}

type usersPageData struct {
	Users   []model.User
	Invites []model.Invite
	Roles   []string
	Now     time.Time
}

// List renders all users and pending invites.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.queries.ListUsers(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list users", "error", err)
		return
	}

	invites, err := h.queries.ListInvites(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list invites", "error", err)
		return
	}

	siteName, currency := siteSettings(r.Context(), h.settings)
	if err := h.renderer.Render(w, r, "app/users", render.TemplateData{
		Title:     "Users",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "users",
		Data: usersPageData{
			Users:   users,
			Invites: invites,
			Roles:   model.ValidRoles,
			Now:     time.Now(),
		},
	}); err != nil {
		logAndInternalError(w, "failed to render users", "error", err)
	}
}

// Invite creates a new invite token.
func (h *UserHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectUsers) {
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			flashError(w, r, h.renderer, redirectUsers, "Invalid email address")
			return
		}
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		flashError(w, r, h.renderer, redirectUsers, "Invalid role")
		return
	}

	actor := middleware.GetUser(r)
	if actor == nil {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}

	now := time.Now()
	invite, err := h.queries.CreateInvite(r.Context(), store.CreateInviteParams{
		Token:     uuid.NewString(),
		Email:     email,
		Role:      role,
		CreatedBy: actor.ID,
		ExpiresAt: now.Add(InviteValidity),
		CreatedAt: now,
	})
	if err != nil {
		logAndInternalError(w, "failed to create invite", "error", err)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogUserEvent(r.Context(), model.EventLevelInfo, "Invite created", userID, ip,
		map[string]any{"invite_id": invite.ID, "email": email, "role": role}))

	flashSuccess(w, r, h.renderer, redirectUsers, "Invite created. Share this link: /invite/"+invite.Token)
}

// DeleteInvite revokes a pending invite.
func (h *UserHandler) DeleteInvite(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectUsers, "Invalid invite ID")
		return
	}

	if err := h.queries.DeleteInvite(r.Context(), id); err != nil {
		logAndInternalError(w, "failed to delete invite", "error", err, "invite_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogUserEvent(r.Context(), model.EventLevelInfo, "Invite revoked", userID, ip,
		map[string]any{"invite_id": id}))

	flashSuccess(w, r, h.renderer, redirectUsers, "Invite revoked")
}

// Update changes a user's name, email, or role. The last remaining admin
// cannot be demoted.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectUsers) {
		return
	}

	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectUsers, "Invalid user ID")
		return
	}

	target, ok := requireEntityWithRedirect(w, r, h.renderer, redirectUsers, "user", id,
		func(id int64) (model.User, error) { return h.queries.GetUser(r.Context(), id) })
	if !ok {
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if _, err := mail.ParseAddress(email); err != nil {
		flashError(w, r, h.renderer, redirectUsers, "Invalid email address")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		flashError(w, r, h.renderer, redirectUsers, "Name is required")
		return
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		flashError(w, r, h.renderer, redirectUsers, "Invalid role")
		return
	}

	if target.Role == model.RoleAdmin && role != model.RoleAdmin {
		admins, err := h.queries.CountUsersByRole(r.Context(), model.RoleAdmin)
		if err != nil {
			logAndInternalError(w, "failed to count admins", "error", err)
			return
		}
		if admins <= 1 {
			flashError(w, r, h.renderer, redirectUsers, "Cannot demote the last admin")
			return
		}
	}

	if existing, err := h.queries.GetUserByEmail(r.Context(), email); err == nil && existing.ID != id {
		flashError(w, r, h.renderer, redirectUsers, "Another account already uses this email")
		return
	}

	updated, err := h.queries.UpdateUser(r.Context(), store.UpdateUserParams{
		ID:        id,
		Email:     email,
		Role:      role,
		Name:      name,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		logAndInternalError(w, "failed to update user", "error", err, "user_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogUserEvent(r.Context(), model.EventLevelInfo, "User updated", userID, ip,
		map[string]any{"target_user_id": updated.ID, "role": updated.Role}))

	flashSuccess(w, r, h.renderer, redirectUsers, "User updated")
}

// Delete removes a user. The last remaining admin and the acting user
// cannot be deleted.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectUsers, "Invalid user ID")
		return
	}

	actor := middleware.GetUser(r)
	if actor != nil && actor.ID == id {
		flashError(w, r, h.renderer, redirectUsers, "You cannot delete your own account")
		return
	}

	target, ok := requireEntityWithRedirect(w, r, h.renderer, redirectUsers, "user", id,
		func(id int64) (model.User, error) { return h.queries.GetUser(r.Context(), id) })
	if !ok {
		return
	}

	if target.Role == model.RoleAdmin {
		admins, err := h.queries.CountUsersByRole(r.Context(), model.RoleAdmin)
		if err != nil {
			logAndInternalError(w, "failed to count admins", "error", err)
			return
		}
		if admins <= 1 {
			flashError(w, r, h.renderer, redirectUsers, "Cannot delete the last admin")
			return
		}
	}

	if err := h.queries.DeleteUser(r.Context(), id); err != nil {
		logAndInternalError(w, "failed to delete user", "error", err, "user_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogUserEvent(r.Context(), model.EventLevelInfo, "User deleted", userID, ip,
		map[string]any{"target_user_id": id, "email": target.Email}))

	flashSuccess(w, r, h.renderer, redirectUsers, "User deleted")
}
