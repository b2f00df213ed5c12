// Package server is the composition root: it opens the database, builds
// every service and handler, mounts the routes and runs the HTTP server.
//
// Route map:
//
//	GET  /                          health
//	GET  /metrics                   Prometheus exposition
//	GET  /auth/{provider}           redirect to the provider's consent page
//	GET  /auth/{provider}/callback  code exchange, session, redirect to the frontend
//	GET  /auth/logout, POST too     destroy the session
//	GET  /auth/current-user         the logged-in user, or 401
//	/api/...                        everything else, behind the session gate
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
	"github.com/go-chi/cors"

	"github.com/sakif/pixvault/internal/auth"
	"github.com/sakif/pixvault/internal/config"
	"github.com/sakif/pixvault/internal/handler"
	"github.com/sakif/pixvault/internal/middleware"
	"github.com/sakif/pixvault/internal/model"
	sqliteRepo "github.com/sakif/pixvault/internal/repository/sqlite"
	"github.com/sakif/pixvault/internal/service"
	"github.com/sakif/pixvault/internal/unsplash"
)

const (
	metricsNamespace = "pixvault"
	purgeInterval    = time.Hour
	shutdownTimeout  = 30 * time.Second
)

type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *auth.SessionStore
	metrics  *middleware.Metrics
}

// New opens the database and wires every route. The caller owns the
// returned server and must call Start or Close.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: auth.NewSessionStore(db, cfg.SessionSecret, cfg.IsProduction()),
		metrics:  middleware.NewMetrics(metricsNamespace),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) providers() []auth.Provider {
	constructors := map[model.Provider]func(auth.ProviderConfig) auth.Provider{
		model.ProviderGoogle:   auth.NewGoogle,
		model.ProviderFacebook: auth.NewFacebook,
		model.ProviderGitHub:   auth.NewGitHub,
	}

	var out []auth.Provider
	for _, name := range s.config.EnabledProviders() {
		creds := s.config.Credentials(name)
		out = append(out, constructors[name](auth.ProviderConfig{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			CallbackURL:  s.config.CallbackURL(name),
		}))
	}
	return out
}

func (s *Server) setupRoutes() error {
	state, err := auth.NewStateSigner(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating state signer: %w", err)
	}

	images := unsplash.New(unsplash.Config{
		BaseURL:   s.config.UnsplashAPIURL,
		AccessKey: s.config.UnsplashAccessKey,
		Timeout:   s.config.UnsplashTimeout,
	})

	sessionManager := auth.NewSessionManager(s.sessions)
	gate := auth.NewGate(sessionManager, s.db, s.logger)

	authService := service.NewAuthService(s.db, s.logger)
	searchService := service.NewSearchService(images, s.db, s.db, s.db, s.logger)
	favoriteService := service.NewFavoriteService(s.db, s.db, s.logger)
	collectionService := service.NewCollectionService(s.db, s.logger)
	downloadService := service.NewDownloadService(images, s.db, s.db, s.logger)
	userService := service.NewUserService(s.db, s.db, s.db, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(handler.AuthConfig{
		Providers:     s.providers(),
		State:         state,
		Sessions:      sessionManager,
		Gate:          gate,
		Users:         authService,
		FrontendURL:   s.config.FrontendURL,
		SecureCookies: s.config.IsProduction(),
	}, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	searchHandler := handler.NewSearchHandler(searchService, s.logger)
	favoriteHandler := handler.NewFavoriteHandler(favoriteService, s.logger)
	collectionHandler := handler.NewCollectionHandler(collectionService, s.logger)
	downloadHandler := handler.NewDownloadHandler(downloadService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)

	// Recover sits inside Logger and Instrument so a panic is still logged
	// and counted as a 500.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Instrument)
	s.router.Use(middleware.Recover(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/current-user", authHandler.HandleCurrentUser)
		r.Get("/logout", authHandler.HandleLogout)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/{provider}", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(gate.RequireAuth)

		r.Post("/search", searchHandler.HandleSearch)
		r.Get("/search/suggestions", searchHandler.HandleSuggestions)
		r.Get("/history", searchHandler.HandleHistory)
		r.Get("/top-searches", searchHandler.HandleTopSearches)

		r.Get("/favorites", favoriteHandler.HandleList)
		r.Post("/favorites", favoriteHandler.HandleCreate)
		r.Get("/favorites/{imageId}/status", favoriteHandler.HandleStatus)
		r.Delete("/favorites/{id}", favoriteHandler.HandleDelete)

		r.Get("/collections", collectionHandler.HandleList)
		r.Post("/collections", collectionHandler.HandleCreate)
		r.Get("/collections/{id}", collectionHandler.HandleGet)
		r.Put("/collections/{id}", collectionHandler.HandleUpdate)
		r.Delete("/collections/{id}", collectionHandler.HandleDelete)
		r.Post("/collections/{id}/images", collectionHandler.HandleAddImage)
		r.Delete("/collections/{id}/images/{imageId}", collectionHandler.HandleRemoveImage)

		r.Get("/downloads", downloadHandler.HandleList)
		r.Post("/downloads", downloadHandler.HandleCreate)
		r.Delete("/downloads/{id}", downloadHandler.HandleDelete)

		r.Get("/user/profile", userHandler.HandleProfile)
		r.Put("/user/profile", userHandler.HandleUpdateProfile)
		r.Get("/user/dashboard", userHandler.HandleDashboard)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not_found","message":"route not found"}` + "\n"))
	})

	return nil
}

// purgeSessions deletes expired sessions every interval until ctx is done.
func (s *Server) purgeSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Server) purgeOnce(ctx context.Context) {
	n, err := s.sessions.Purge(ctx)
	if err != nil {
		s.logger.Error("purging expired sessions", slog.String("error", err.Error()))
		return
	}
	s.metrics.SessionsPurged.Add(float64(n))
	if n > 0 {
		s.logger.Info("purged expired sessions", slog.Int64("count", n))
	}
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go s.purgeSessions(janitorCtx, purgeInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
			slog.Any("providers", s.config.EnabledProviders()),
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
		stopJanitor()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
