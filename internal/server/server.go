// Package server is the composition root: it builds every dependency from
// config, mounts the routes, and owns shutdown.
//
// WHY A SEPARATE PACKAGE?
// main only loads config. Everything else is assembled here, so tests can
// build the complete application (router, services, an in-memory SQLite)
// and drive it with httptest, without a process or a network port.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB ─┬→ services → handlers → chi router
//	       → session.Store (memory | redis) → auth.Gate
//	       → auth.Registry (configured providers only)
//	       → unsplash.Client (only with an access key)
//
// Each layer receives only what it needs. Services see repository
// interfaces, never *sqlite.DB, and handlers see services, never storage.
// That is what lets service tests run on in-memory fakes.
//
// Everything the server opens it also closes, in reverse order, in Close.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/imagesearch/internal/auth"
	"github.com/sakif/imagesearch/internal/config"
	"github.com/sakif/imagesearch/internal/handler"
	"github.com/sakif/imagesearch/internal/middleware"
	"github.com/sakif/imagesearch/internal/repository"
	sqliteRepo "github.com/sakif/imagesearch/internal/repository/sqlite"
	"github.com/sakif/imagesearch/internal/service"
	"github.com/sakif/imagesearch/internal/session"
	"github.com/sakif/imagesearch/internal/unsplash"
)

const (
	shutdownTimeout  = 30 * time.Second
	discoveryTimeout = 10 * time.Second
)

// Option overrides a dependency New would otherwise build from config.
//
// FUNCTIONAL OPTIONS:
// New takes a variadic list of these instead of growing a parameter per
// override. Production passes none; tests pass WithProviders to sign in
// without a real OAuth provider.
type Option func(*options)

type options struct {
	providers []auth.Provider
	searcher  service.ImageSearcher
}

// WithProviders registers exactly these OAuth providers instead of the
// ones configured through the environment.
func WithProviders(p ...auth.Provider) Option {
	return func(o *options) { o.providers = p }
}

// WithImageSearcher replaces the Unsplash client.
func WithImageSearcher(s service.ImageSearcher) Option {
	return func(o *options) { o.searcher = s }
}

type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	redis    *redis.Client // nil with in-memory sessions
	recorder *service.HistoryRecorder

	closeOnce sync.Once
}

// New wires the whole application and starts the history recorder. The
// caller must call Close (Start does so on return).
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// === STORAGE ===
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	sessions, err := s.sessionStore()
	if err != nil {
		db.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// === SERVICES ===
	providers := o.providers
	if providers == nil {
		providers = s.configuredProviders()
	}
	registry := auth.NewRegistry(providers...)

	searcher := o.searcher
	if searcher == nil && cfg.UnsplashAccessKey != "" {
		searcher = unsplash.New(cfg.UnsplashBaseURL, cfg.UnsplashAccessKey, cfg.UnsplashTimeout)
	}
	if searcher == nil {
		logger.Warn("UNSPLASH_ACCESS_KEY not set, searches return placeholder images")
	}

	s.recorder = service.NewHistoryRecorder(db, cfg.HistoryQueueSize, cfg.HistoryWorkers, logger)
	s.recorder.Start()

	authService := service.NewAuthService(db, sessions, tokens, cfg.SessionTTL, logger)
	searchService := service.NewSearchService(searcher, s.recorder, logger)
	historyService := service.NewHistoryService(db, logger)
	statsService := service.NewStatsService(db, logger)
	savedService := service.NewSavedImageService(db, logger)

	// === HANDLERS + ROUTES ===
	s.routes(routeDeps{
		gate:   auth.NewGate(tokens, sessions, db, logger),
		auth:   handler.NewAuthHandler(registry, authService, auth.Cookies{Secure: cfg.CookieSecure}, cfg.ClientRootURL, logger),
		search: handler.NewSearchHandler(searchService, historyService, statsService, logger),
		saved:  handler.NewSavedImageHandler(savedService, logger),
		health: handler.NewHealthHandler(map[string]repository.Pinger{
			"database": db,
			"sessions": sessions,
		}),
	})

	logger.Info("server configured",
		slog.Any("oauth_providers", registry.Names()),
		slog.Bool("redis_sessions", s.redis != nil),
		slog.Bool("live_search", searcher != nil),
	)
	return s, nil
}

// sessionStore picks Redis when REDIS_URL is set and memory otherwise.
func (s *Server) sessionStore() (session.Store, error) {
	if s.config.RedisURL == "" {
		s.logger.Warn("REDIS_URL not set, sessions are kept in memory and lost on restart")
		return session.NewMemoryStore(s.config.SessionTTL), nil
	}

	client, err := session.NewRedisClient(context.Background(), s.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s.redis = client
	return session.NewRedisStore(client, s.config.SessionTTL), nil
}

// configuredProviders builds a provider for every client with credentials.
// Google needs OIDC discovery at startup; if that fails the server still
// starts without Google sign-in.
func (s *Server) configuredProviders() []auth.Provider {
	var out []auth.Provider
	cfg := s.config

	if cfg.GitHub.Configured() {
		out = append(out, auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL))
	}
	if cfg.Facebook.Configured() {
		out = append(out, auth.NewFacebookProvider(cfg.Facebook.ClientID, cfg.Facebook.ClientSecret, cfg.Facebook.CallbackURL))
	}
	if cfg.Google.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
		defer cancel()
		google, err := auth.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
		if err != nil {
			s.logger.Warn("google sign-in disabled", slog.String("error", err.Error()))
		} else {
			out = append(out, google)
		}
	}

	if len(out) == 0 {
		s.logger.Warn("no OAuth provider configured, nobody can sign in")
	}
	return out
}

type routeDeps struct {
	gate   *auth.Gate
	auth   *handler.AuthHandler
	search *handler.SearchHandler
	saved  *handler.SavedImageHandler
	health *handler.HealthHandler
}

// routes mounts middleware and handlers.
//
//	GET    /healthz                    → backend reachability
//	GET    /auth/{provider}            → start OAuth
//	GET    /auth/{provider}/callback   → finish OAuth
//	GET    /auth/logout                → sign out, redirect
//	POST   /auth/logout                → sign out, {ok:true}
//	GET    /api/top-searches           → public leaderboard
//	GET    /api/images                 → public placeholder images
//	GET    /api/user                   → session required from here down
//	POST   /api/search
//	GET    /api/search/history
//	GET    /api/search/stats
//	POST   /api/saved-images
//	GET    /api/saved-images
//	POST   /api/saved-images/batch
//	DELETE /api/saved-images/{id}
//
// Recoverer sits inside Logger so a panic is logged as the 500 it becomes.
func (s *Server) routes(d routeDeps) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(s.config.ClientRootURL))

	r.Get("/healthz", d.health.HandleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.With(d.gate.OptionalSession).Get("/logout", d.auth.HandleLogoutRedirect)
		r.With(d.gate.OptionalSession).Post("/logout", d.auth.HandleLogout)
		r.Get("/{provider}", d.auth.HandleLogin)
		r.Get("/{provider}/callback", d.auth.HandleCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/top-searches", d.search.HandleTopSearches)
		r.Get("/images", d.search.HandleImages)

		r.Group(func(r chi.Router) {
			r.Use(d.gate.RequireSession)

			r.Get("/user", d.auth.HandleUser)

			r.Post("/search", d.search.HandleSearch)
			r.Get("/search/history", d.search.HandleHistory)
			r.Get("/search/stats", d.search.HandleStats)

			r.Post("/saved-images", d.saved.HandleCreate)
			r.Get("/saved-images", d.saved.HandleList)
			r.Post("/saved-images/batch", d.saved.HandleBatch)
			r.Delete("/saved-images/{id}", d.saved.HandleDelete)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close drains the history queue, then closes the database and Redis.
// It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.recorder != nil {
			s.recorder.Stop()
		}
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				s.logger.Error("closing redis", slog.String("error", err.Error()))
			}
		}
	})
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. ListenAndServe runs in a goroutine so this one can wait for a signal
//  2. On Ctrl+C or SIGTERM, Shutdown stops accepting new connections
//  3. In-flight requests get up to 30s to finish
//  4. Close drains the history queue and closes the database and Redis
//
// Without step 4 a search made just before shutdown could lose its
// history entry.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Live searches may wait up to UNSPLASH_TIMEOUT on the provider.
		WriteTimeout: s.config.UnsplashTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// signal.Notify needs a buffered channel: the runtime does not block
	// when delivering, so an unbuffered one could miss the signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.ServerRootURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
