// Command musicard runs the MusiCard web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/musicard/musicard/internal/auth"
	"github.com/musicard/musicard/internal/config"
	"github.com/musicard/musicard/internal/db"
	"github.com/musicard/musicard/internal/images"
	"github.com/musicard/musicard/internal/search"
	"github.com/musicard/musicard/internal/store"
	"github.com/musicard/musicard/internal/web"
	"github.com/musicard/musicard/internal/youtube"
	webfs "github.com/musicard/musicard/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "musicard",
	})
	if !cfg.Server.Production {
		logger.SetLevel(log.DebugLevel)
	}

	ctx := context.Background()

	// Postgres is optional; the local JSON store always backs the facade
	// as the fallback tier.
	var database *db.DB
	if cfg.Storage.Backend == config.BackendPostgres {
		database, err = db.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Warn("postgres unavailable, continuing on local storage", "error", err)
		} else {
			defer database.Close()
		}
	}

	local := store.NewFileStore(cfg.Storage.LocalPath, cfg.Storage.BackupPath)
	var remote store.Store
	if database != nil {
		remote = store.NewPGStore(database)
	}
	profiles := store.NewFacade(remote, local, logger)

	// Spotify authorization. Search degrades to Last.fm and the built-in
	// catalog when no client ID is configured.
	var spotifyAuth *auth.Manager
	if cfg.Spotify.ClientID != "" {
		spotifyAuth, err = auth.NewManager(auth.ManagerConfig{
			ClientID:    cfg.Spotify.ClientID,
			RedirectURI: cfg.Spotify.RedirectURI,
			Tokens:      auth.NewTokenStore(cfg.Spotify.TokenPath),
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("creating spotify auth manager: %w", err)
		}
	}

	var providers []search.Provider
	if cfg.Features.SpotifySearch && spotifyAuth != nil {
		providers = append(providers, search.NewSpotifyProvider(spotifyAuth))
	}
	if cfg.LastFM.APIKey != "" {
		providers = append(providers, search.NewLastFMProvider(cfg.LastFM.APIKey))
	}
	searchSvc := search.NewService(logger, providers...)

	blobs := images.NewFSBlobStore(cfg.Blob.Dir, cfg.Server.BaseURL)
	var imageCache images.Cache = images.NewMemoryCache()
	if database != nil {
		imageCache = database.ImageCache()
	}
	relay := images.NewRelay(blobs, imageCache, logger)

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Config:   cfg,
		Store:    profiles,
		Search:   searchSvc,
		YouTube:  youtube.NewClient(cfg.YouTube.APIKey),
		Relay:    relay,
		Spotify:  spotifyAuth,
		DB:       database,
		BlobRoot: blobs.Root(),
		StaticFS: static,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("configuration loaded",
		"storage", cfg.Storage.Backend,
		"spotify", cfg.Spotify.ClientID != "",
		"lastfm", cfg.LastFM.APIKey != "",
		"youtube", cfg.YouTube.APIKey != "")

	return server.Run()
}
