// Package web serves the MusiCard HTTP API.
package web

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/musicard/musicard/internal/auth"
	"github.com/musicard/musicard/internal/config"
	"github.com/musicard/musicard/internal/db"
	"github.com/musicard/musicard/internal/images"
	"github.com/musicard/musicard/internal/search"
	"github.com/musicard/musicard/internal/store"
	"github.com/musicard/musicard/internal/youtube"
)

// ServerConfig holds everything the HTTP surface depends on. DB is nil when
// the local storage backend is selected; the /api/db routes then refuse.
type ServerConfig struct {
	Config   *config.Config
	Store    *store.Facade
	Search   *search.Service
	YouTube  *youtube.Client
	Relay    *images.Relay
	Spotify  *auth.Manager
	DB       *db.DB
	BlobRoot string
	StaticFS fs.FS
	Logger   *log.Logger
}

// Server is the MusiCard HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	cfg      *config.Config
	store    *store.Facade
	search   *search.Service
	youtube  *youtube.Client
	relay    *images.Relay
	spotify  *auth.Manager
	db       *db.DB
	blobRoot string
	issuer   *TokenIssuer
	logger   *log.Logger
}

// NewServer creates the server and wires all routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("missing application config")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("missing profile store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg.Config,
		store:    cfg.Store,
		search:   cfg.Search,
		youtube:  cfg.YouTube,
		relay:    cfg.Relay,
		spotify:  cfg.Spotify,
		db:       cfg.DB,
		blobRoot: cfg.BlobRoot,
		issuer:   NewTokenIssuer(cfg.Config.Admin.SigningSecret, cfg.Config.Server.BaseURL),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Config.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(corsMiddleware)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}
	if s.blobRoot != "" {
		blobServer := http.FileServer(http.Dir(s.blobRoot))
		s.router.Handle("/blob/*", http.StripPrefix("/blob/", blobServer))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Post("/config", s.handleConfig)

		r.Route("/db", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleDB)
			r.Post("/", s.handleDB)
		})

		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{username}", s.handleGetProfile)
		r.With(s.requireAuth).Post("/profiles", s.handleSaveProfile)
		r.Post("/profiles/{username}/view", s.handleIncrementViews)
		r.With(s.requireAdmin).Delete("/profiles/{username}", s.handleDeleteProfile)

		r.Get("/search/music", s.handleSearchMusic)
		r.Get("/search/albums", s.handleSearchAlbums)
		r.Get("/youtube/search", s.handleYouTubeSearch)

		r.With(s.requireAuth).Post("/upload/image", s.handleUploadImage)
		r.With(s.requireAuth).Delete("/delete/image", s.handleDeleteImage)
		r.With(s.requireAdmin).Post("/cleanup/images", s.handleCleanupImages)
		r.Get("/stats/images", s.handleImageStats)

		r.Get("/auth/login", s.handleAuthLogin)
		r.Post("/auth/token", s.handleIssueToken)
	})

	s.router.Get("/callback", s.handleAuthCallback)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
