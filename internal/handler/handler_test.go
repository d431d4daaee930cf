// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/auth"
	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/session"
	"github.com/openledger/openledger/internal/store"
	"github.com/openledger/openledger/web"

	"github.com/alexedwards/scs/v2"
)

// testApp bundles the real stack on a temp-file database so handler tests
// exercise the same wiring as main.
type testApp struct {
	db       *sql.DB
	queries  *store.Queries
	sm       *scs.SessionManager
	renderer *render.Renderer
	events   *service.EventService
	summary  *service.SummaryService
	settings *cache.SettingsCache
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	f, err := os.CreateTemp("", "ledger-handler-test-*.db")
	require.NoError(t, err)
	dbPath := f.Name()
	f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		db.Close()
		os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	sessCfg := session.DefaultConfig(strings.Repeat("k", 32), true)
	sm, err := session.New(db, sessCfg, true)
	require.NoError(t, err)

	renderer, err := render.New(render.Config{
		TemplatesFS:    web.Templates(),
		SessionManager: sm,
		IsDev:          true,
	})
	require.NoError(t, err)

	memCache := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute, MaxSize: 1000})
	t.Cleanup(func() { memCache.Close() })

	return &testApp{
		db:       db,
		queries:  store.New(db),
		sm:       sm,
		renderer: renderer,
		events:   service.NewEventService(db, nil),
		summary:  service.NewSummaryService(db, memCache, nil),
		settings: cache.NewSettingsCache(store.New(db)),
	}
}

// serve runs the request through a session-loading chi router so handlers
// can use flash messages, session writes, and URL parameters.
func (app *testApp) serve(t *testing.T, register func(chi.Router), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(app.sm.LoadAndSave)
	register(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// createUser inserts a user with a real password hash and returns it.
func (app *testApp) createUser(t *testing.T, email, password, role string) model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	now := time.Now()
	user, err := app.queries.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         strings.SplitN(email, "@", 2)[0],
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return user
}

// createCategory inserts a category and returns it.
func (app *testApp) createCategory(t *testing.T, name, kind string) model.Category {
	t.Helper()
	now := time.Now()
	c, err := app.queries.CreateCategory(context.Background(), store.CreateCategoryParams{
		Name:      name,
		Slug:      strings.ToLower(name),
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return c
}

// formRequest builds a POST request with form-encoded values and an
// authenticated user on the context.
func formRequest(target string, values url.Values, user *model.User) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != nil {
		req = middleware.WithUser(req, *user)
	}
	return req
}

// withTestUser attaches an authenticated user to a request the way the
// session gate does in production.
func withTestUser(req *http.Request, user *model.User) *http.Request {
	if user == nil {
		return req
	}
	return middleware.WithUser(req, *user)
}

// flashMessage reads the flash left in the session cookie a response set.
func (app *testApp) flashMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	cookie := sessionCookie(rr)
	if cookie == nil {
		return ""
	}

	var flash string
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flash = app.sm.PopString(r.Context(), "flash")
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	app.sm.LoadAndSave(probe).ServeHTTP(httptest.NewRecorder(), req)
	return flash
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			return c
		}
	}
	return nil
}
