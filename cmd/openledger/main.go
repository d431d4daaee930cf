// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/config"
	"github.com/openledger/openledger/internal/geoip"
	"github.com/openledger/openledger/internal/handler"
	"github.com/openledger/openledger/internal/logging"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/notify"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/scheduler"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/session"
	"github.com/openledger/openledger/internal/store"
	"github.com/openledger/openledger/internal/version"
	"github.com/openledger/openledger/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "OpenLedger - Household Budgeting\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_SESSION_SECRET      Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_DB_PATH             SQLite database path (default: ./data/openledger.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_SERVER_PORT         Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_ENV                 Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_REDIS_URL           Redis URL for shared caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_GEOIP_DB_PATH       GeoLite2-Country.mmdb path for login geo context (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_PUSH_SIGNING_SECRET HMAC key for push delivery signatures (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LEDGER_DO_SEED             Seed a demo ledger on first run (default: false)\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/openledger/openledger\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("openledger %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Create version info from build-time injected values
	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	// Run migrations
	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	auditHandler := logging.NewAuditLogHandler(textHandler, db)
	logger = slog.New(auditHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Seed default data
	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	if err := store.SeedDemo(ctx, db, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding demo ledger: %w", err)
	}

	// Initialize session manager and resolver
	sessCfg := session.DefaultConfig(cfg.SessionSecret, cfg.IsDevelopment())
	sessionManager, err := session.New(db, sessCfg, cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("initializing session manager: %w", err)
	}
	resolver := session.NewResolver(sessionManager, db, sessCfg)
	slog.Info("session manager initialized")

	// Initialize GeoIP lookup for login event context
	geo := geoip.NewLookup()
	if cfg.GeoIPEnabled() {
		if err := geo.Init(cfg.GeoIPDBPath); err != nil {
			slog.Warn("GeoIP database unavailable, country lookups disabled",
				"path", cfg.GeoIPDBPath, "error", err)
		} else {
			slog.Info("GeoIP lookups enabled", "path", cfg.GeoIPDBPath)
		}
	}
	defer func() {
		if err := geo.Close(); err != nil {
			slog.Error("error closing GeoIP database", "error", err)
		}
	}()

	// Initialize the data cache for monthly summaries
	dataCache := cache.NewCache(cache.Options{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	})
	defer func() {
		if err := dataCache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	if cfg.UseRedisCache() {
		slog.Info("cache initialized", "backend", "redis", "url", cfg.RedisURL)
	} else {
		slog.Info("cache initialized", "backend", "memory")
	}

	// Preload the settings cache
	settingsCache := cache.NewSettingsCache(store.New(db))
	if err := settingsCache.Preload(ctx); err != nil {
		slog.Warn("failed to preload settings cache", "error", err)
	}

	// Initialize template renderer
	renderer, err := render.New(render.Config{
		TemplatesFS:    web.Templates(),
		SessionManager: sessionManager,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	slog.Info("template renderer initialized")

	// Initialize services
	eventService := service.NewEventService(db, geo)
	summaryService := service.NewSummaryService(db, dataCache, logger)

	// Initialize and start the recurring transaction scheduler
	sched := scheduler.New(db, geo, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Initialize and start the push notification dispatcher
	dispatcher := notify.NewDispatcher(db, logger, notify.DefaultConfig(cfg.PushSecret()))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	slog.Info("push dispatcher initialized")

	// Initialize login protection
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	slog.Info("login protection initialized",
		"ip_rate_limit", "0.5 req/s",
		"max_failed_attempts", 5,
		"lockout_duration", "15m",
	)

	// Shared limiter for the public auth routes
	publicRateLimiter := middleware.NewGlobalRateLimiter(10.0, 20)
	slog.Info("public rate limiter initialized", "rate", "10 req/s", "burst", 20)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(db, renderer, sessionManager, eventService, loginProtection)
	authAPIHandler := handler.NewAuthAPIHandler(resolver, sessionManager, eventService)
	dashboardHandler := handler.NewDashboardHandler(db, renderer, settingsCache, summaryService)
	budgetHandler := handler.NewBudgetHandler(db, renderer, settingsCache, eventService)
	transactionHandler := handler.NewTransactionHandler(db, renderer, settingsCache, eventService, summaryService)
	categoryHandler := handler.NewCategoryHandler(db, renderer, settingsCache, eventService)
	settingsHandler := handler.NewSettingsHandler(db, renderer, settingsCache, eventService, dispatcher)
	userHandler := handler.NewUserHandler(db, renderer, settingsCache, eventService)
	eventHandler := handler.NewEventHandler(db, renderer, settingsCache)
	healthHandler := handler.NewHealthHandler(db, sessionManager, versionInfo)
	pushHandler := handler.NewPushHandler(db, eventService)

	// Create router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.StripTrailingSlash)

	// Security headers middleware (CSP, HSTS, X-Frame-Options, etc.)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.RequestPath)

	r.Use(sessionManager.LoadAndSave)

	// Session gate: public and static routes pass through, everything else
	// requires a signed-in user on the request context
	r.Use(middleware.Gate(middleware.Classify, resolver))

	// CSRF protection. The JSON API routes are exempt; they are guarded by
	// SameSite session cookies and called same-origin from the app shell.
	r.Use(middleware.SkipCSRFPrefixes("/api/"))
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())))
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	// Health check routes (public, more detail for authenticated callers)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Auth routes (public, rate limited)
	r.Group(func(r chi.Router) {
		r.Use(publicRateLimiter.HTMLMiddleware())
		r.Get(handler.RouteLogin, authHandler.LoginForm)
		r.With(loginProtection.Middleware()).Post(handler.RouteLogin, authHandler.Login)
		r.Get(handler.RouteRegister, authHandler.RegisterForm)
		r.Post(handler.RouteRegister, authHandler.Register)
		r.Get(handler.RouteInviteToken, authHandler.InviteLanding)
	})
	r.Get(handler.RouteLogout, authHandler.Logout)
	r.Post(handler.RouteLogout, authHandler.Logout)

	// Session API for the app shell
	r.Get(handler.RouteAPIAuthSession, authAPIHandler.Session)
	r.Post(handler.RouteAPIAuthLogout, authAPIHandler.Logout)

	// Member routes (session required via the gate)
	r.Group(func(r chi.Router) {
		r.Get(handler.RouteRoot, dashboardHandler.Show)

		r.Get(handler.RouteBudgets, budgetHandler.List)
		r.Post(handler.RouteBudgets, budgetHandler.Upsert)
		r.Post(handler.RouteBudgets+"/copy", budgetHandler.CopyPrevious)
		r.Post(handler.RouteBudgetsID+"/delete", budgetHandler.Delete)

		r.Get(handler.RouteTransactions, transactionHandler.List)
		r.Get(handler.RouteTransactions+handler.RouteSuffixNew, transactionHandler.NewForm)
		r.Post(handler.RouteTransactions, transactionHandler.Create)
		r.Get(handler.RouteTransactionsID, transactionHandler.EditForm)
		r.Post(handler.RouteTransactionsID, transactionHandler.Update)
		r.Post(handler.RouteTransactionsID+"/delete", transactionHandler.Delete)

		r.Get(handler.RouteCategories, categoryHandler.List)
		r.Post(handler.RouteCategories, categoryHandler.Create)
		r.Post(handler.RouteCategoriesID, categoryHandler.Update)
		r.Post(handler.RouteCategoriesID+"/delete", categoryHandler.Delete)

		r.Post(handler.RouteAPIPushSubscriptions, pushHandler.Subscribe)
		r.Delete(handler.RouteAPIPushSubscriptions, pushHandler.Unsubscribe)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin())

		r.Get(handler.RouteSettings, settingsHandler.Show)
		r.Post(handler.RouteSettings, settingsHandler.Update)
		r.Post(handler.RouteSettings+"/test-notification", settingsHandler.TestNotification)

		r.Get(handler.RouteUsers, userHandler.List)
		r.Post(handler.RouteUsers+"/invite", userHandler.Invite)
		r.Post(handler.RouteUsersID, userHandler.Update)
		r.Post(handler.RouteUsersID+"/delete", userHandler.Delete)
		r.Post(handler.RouteUsers+"/invites/{id}/delete", userHandler.DeleteInvite)

		r.Get(handler.RouteEvents, eventHandler.List)
	})

	// PWA entry points served from the embedded static tree. The service
	// worker must always revalidate so pushed updates take effect.
	staticFS := web.Static()
	r.Get("/manifest.webmanifest", serveStaticFile(staticFS, "manifest.webmanifest", "application/manifest+json"))
	r.Get("/sw.js", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		serveStaticFile(staticFS, "sw.js", "application/javascript; charset=utf-8")(w, req)
	})
	r.Get("/favicon.ico", serveStaticFile(staticFS, "favicon.ico", "image/x-icon"))

	// Static assets: cache for 1 year
	staticHandler := middleware.StaticCache(31536000)(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Handle("/static/*", staticHandler)

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// serveStaticFile serves a single embedded file with a fixed content type.
func serveStaticFile(fsys fs.FS, name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		_, _ = w.Write(data)
	}
}
