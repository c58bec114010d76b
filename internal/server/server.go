// Package server wires handlers, middleware and routes into one router and
// runs it with graceful shutdown.
//
// The dependency chain is assembled in cmd/server:
//
//	config → repository.Store → services → Server
//
// Server itself only decides which URL maps to which handler and which
// middleware guards it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/handler"
	"github.com/sakif/memorial/internal/metrics"
	"github.com/sakif/memorial/internal/middleware"
	"github.com/sakif/memorial/internal/service"
)

type Config struct {
	Port            int
	CookieSecure    bool
	ShutdownTimeout time.Duration
	// UploadDir is served read-only under /uploads when set. It stays
	// empty when uploads go to object storage.
	UploadDir string
}

// Pinger is what the health check needs from the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the handlers call into.
type Services struct {
	Accounts *service.AccountService
	Tributes *service.TributeService
	Content  *service.ContentService
	Gallery  *service.GalleryService
	Uploads  *service.UploadService
	Auth     *auth.Authenticator
}

type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	store   Pinger
	metrics *metrics.Metrics
}

// New builds the router. m may be nil, in which case /metrics is not
// mounted and no HTTP metrics are recorded.
func New(cfg Config, store Pinger, svc Services, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: m,
	}
	s.setupRoutes(svc)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers middleware and routes. Middleware runs in the
// order it is added: request id first so every later log line has one,
// Recoverer last so it sees panics from the handlers.
func (s *Server) setupRoutes(svc Services) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
	if s.config.UploadDir != "" {
		files := http.FileServer(http.Dir(s.config.UploadDir))
		s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", files))
	}

	authH := handler.NewAuthHandler(svc.Accounts, s.config.CookieSecure, s.logger)
	tributeH := handler.NewTributeHandler(svc.Tributes, s.logger)
	galleryH := handler.NewGalleryHandler(svc.Gallery, s.logger)
	contentH := handler.NewContentHandler(svc.Content, s.logger)
	adminH := handler.NewAdminHandler(svc.Accounts, s.logger)
	uploadH := handler.NewUploadHandler(svc.Uploads, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.HandleRegister)
			r.Post("/login", authH.HandleLogin)
			r.Post("/logout", authH.HandleLogout)
			r.With(svc.Auth.RequireAuth).Get("/me", authH.HandleMe)
		})

		r.Route("/tributes", func(r chi.Router) {
			r.With(svc.Auth.OptionalAuth).Get("/", tributeH.HandleList)
			r.Get("/{id}/candles", tributeH.HandleListCandles)

			r.Group(func(r chi.Router) {
				r.Use(svc.Auth.RequireAuth)
				r.Post("/", tributeH.HandleCreate)
				r.Delete("/{id}", tributeH.HandleDelete)
				r.Post("/{id}/candle", tributeH.HandleToggleCandle)
			})
		})

		r.Get("/gallery", galleryH.HandleList)
		r.Get("/gallery/featured", galleryH.HandleFeatured)
		r.Get("/gallery/{id}", galleryH.HandleGet)

		r.Get("/settings", contentH.HandleSettings)
		r.Get("/settings/{key}", contentH.HandleGetSetting)
		r.Get("/site", contentH.HandleSite)
		r.Get("/program", contentH.HandleGetProgram)

		r.Route("/admin", func(r chi.Router) {
			r.Use(svc.Auth.RequireAdmin)

			r.Post("/gallery", galleryH.HandleCreate)
			r.Put("/gallery/{id}", galleryH.HandleUpdate)
			r.Delete("/gallery/{id}", galleryH.HandleDelete)

			r.Post("/uploads", uploadH.HandleUpload)

			r.Put("/settings/{key}", contentH.HandleUpsertSetting)
			r.Put("/program", contentH.HandleUpsertProgram)

			r.Get("/users", adminH.HandleListUsers)
			r.Put("/users/{id}/role", adminH.HandleUpdateRole)
			r.Put("/users/{id}/password", adminH.HandleResetPassword)
			r.Delete("/users/{id}", adminH.HandleDeleteUser)
		})
	})
}

// handleHealth reports 200 when the store answers and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// for up to ShutdownTimeout.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
