// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and
// routes. It is the composition root: the provider client, the repositories,
// the services, and the handlers are all assembled here, and every layer only
// receives the interface it depends on.
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — read config, build logger, start)
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/billing-manager/internal/auth"
	"github.com/sakif/billing-manager/internal/handler"
	"github.com/sakif/billing-manager/internal/metrics"
	"github.com/sakif/billing-manager/internal/middleware"
	pgrepo "github.com/sakif/billing-manager/internal/repository/postgrest"
	"github.com/sakif/billing-manager/internal/service"
	"github.com/sakif/billing-manager/web"
)

// Config holds server configuration, loaded from the environment by main.
type Config struct {
	Port            int
	Environment     string   // "development" or "production"
	ProviderURL     string   // identity/data provider project URL
	ProviderAnonKey string   // provider anonymous API key
	AdminAPIKey     string   // gates /metrics; empty disables the endpoint
	AllowedOrigins  []string // CORS allow-list
}

// Development reports whether the server runs with development affordances
// (debug logging, panic detail in error responses).
func (c Config) Development() bool {
	return c.Environment == "development"
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	limiter *middleware.RateLimiter // owned by the server, stopped on shutdown
}

// New creates a Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. auth.NewProvider — the identity provider client
//  2. postgrest.NewConn — the table API connection, wrapped by the repos
//  3. services receive the Identity interface and repository interfaces
//  4. handlers receive the services
//  5. routes receive the handlers
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		limiter: middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
	}

	if err := s.setupRoutes(); err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns a unique ID to each request (for tracing)
// 2. RealIP — extracts the real client IP from proxy headers (the rate
//    limiter keys on this)
// 3. CORS — must answer preflights before anything can reject them
// 4. Logger — logs each request with timing info
// 5. Metrics — records the request counter and latency histogram
// 6. Recovery — catches panics, returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	cfg := s.config

	// === Dependency chain ===
	identity := auth.NewProvider(cfg.ProviderURL, cfg.ProviderAnonKey)
	conn := pgrepo.NewConn(cfg.ProviderURL, cfg.ProviderAnonKey)
	profiles := pgrepo.NewProfileRepo(conn)
	invoices := pgrepo.NewInvoiceRepo(conn)

	authService := service.NewAuthService(identity, profiles, s.logger)
	invoiceService := service.NewInvoiceService(invoices, profiles, s.logger)

	pages, err := handler.NewPages()
	if err != nil {
		return fmt.Errorf("parsing page templates: %w", err)
	}

	providerConfigured := cfg.ProviderURL != "" && cfg.ProviderAnonKey != ""
	authHandler := handler.NewAuthHandler(authService, pages, providerConfigured)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	demoHandler := handler.NewDemoHandler()
	healthHandler := handler.NewHealthHandler(cfg.Environment, providerConfigured)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(collector.Middleware())
	s.router.Use(middleware.Recovery(cfg.Development()))

	requireAuth := auth.RequireAuth(identity)
	throttled := s.limiter.Middleware()

	// === Static files (embedded) ===
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("locating static assets: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// === Pages ===
	s.router.Get("/", pages.Home)
	s.router.Get("/login", pages.Login)

	// === API routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Demo fixtures
		r.Get("/products", demoHandler.Products)
		r.Get("/users", demoHandler.Users)
		r.Get("/users/{id}", demoHandler.UserByID)
		r.Post("/users", demoHandler.CreateUser)

		r.Route("/auth", func(r chi.Router) {
			// Credential endpoints are the brute-forceable ones; they get
			// the per-IP throttle.
			r.Group(func(r chi.Router) {
				r.Use(throttled)
				r.Post("/signup", authHandler.Signup)
				r.Post("/signin", authHandler.Signin)
				r.Post("/reset-password", authHandler.ResetPassword)
			})

			r.Post("/signout", authHandler.Signout)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/check", authHandler.Check)
			r.Get("/providers", authHandler.Providers)

			// Google OAuth
			r.Post("/google", authHandler.GoogleAuth)
			r.Get("/google/url", authHandler.GoogleURL)
			r.Post("/google/callback", authHandler.GoogleCallback)
			r.Get("/callback", authHandler.Callback)

			// Session-protected
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", authHandler.Profile)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Put("/update-password", authHandler.UpdatePassword)
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", invoiceHandler.List)
			r.Post("/", invoiceHandler.Create)
			r.Get("/stats/summary", invoiceHandler.Stats)
			r.Get("/{id}", invoiceHandler.Get)
			r.Put("/{id}", invoiceHandler.Update)
			r.Delete("/{id}", invoiceHandler.Delete)
		})
	})

	// === Operator metrics ===
	// Only exposed when an admin key is configured; an empty key would make
	// the gate a no-op.
	if cfg.AdminAPIKey != "" {
		s.router.With(auth.RequireAdmin(cfg.AdminAPIKey)).
			Get("/metrics", metrics.Handler(registry).ServeHTTP)
	} else {
		s.logger.Warn("ADMIN_API_KEY not set — /metrics endpoint disabled")
	}

	// === 404 ===
	// API paths get the JSON envelope; everything else gets the HTML page.
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"success":false,"error":"API endpoint not found","path":%q}`, r.URL.Path)
			fmt.Fprintln(w)
			return
		}
		pages.NotFound(w, r)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the rate limiter's cleanup goroutine
func (s *Server) Start() error {
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("environment", s.config.Environment),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
