// Package config loads MusiCard configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backend selectors.
const (
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

// productionAdmin is the single admin identity in production deployments.
const productionAdmin = "admin"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Admin    AdminConfig
	Features FeatureFlags
	Spotify  SpotifyConfig
	LastFM   LastFMConfig
	YouTube  YouTubeConfig
	Blob     BlobConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr       string
	BaseURL    string
	Production bool
}

// StorageConfig selects and configures the profile store backend.
type StorageConfig struct {
	Backend     string // "local" or "postgres"
	DatabaseURL string
	LocalPath   string // JSON document path for the local backend
	BackupPath  string // single backup slot written before each save
}

// AdminConfig configures the admin allow-list and session signing.
type AdminConfig struct {
	AllowList     []string
	SigningSecret string
}

// FeatureFlags are runtime toggles surfaced through /api/config.
type FeatureFlags struct {
	SpotifySearch bool
	YouTubeSearch bool
	ImageUpload   bool
}

// SpotifyConfig contains the Spotify application credentials. Only the
// client ID is required; the PKCE flow needs no client secret.
type SpotifyConfig struct {
	ClientID    string
	RedirectURI string
	TokenPath   string
}

// LastFMConfig contains the Last.fm API key.
type LastFMConfig struct {
	APIKey string
}

// YouTubeConfig contains the YouTube Data API key.
type YouTubeConfig struct {
	APIKey string
}

// BlobConfig configures the filesystem blob store.
type BlobConfig struct {
	Dir string
}

// Load reads configuration from the environment. A .env file is loaded
// first if present, matching local development setups.
func Load() (*Config, error) {
	_ = godotenv.Load()

	baseURL := getEnv("MUSICARD_BASE_URL", "http://127.0.0.1:8080")
	production := getBool("MUSICARD_PRODUCTION", false)

	backend := getEnv("MUSICARD_STORAGE", BackendLocal)
	if backend != BackendLocal && backend != BackendPostgres {
		return nil, fmt.Errorf("invalid MUSICARD_STORAGE %q: must be %q or %q", backend, BackendLocal, BackendPostgres)
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if backend == BackendPostgres && databaseURL == "" {
		return nil, fmt.Errorf("MUSICARD_STORAGE=postgres requires DATABASE_URL")
	}

	secret := os.Getenv("MUSICARD_AUTH_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("missing MUSICARD_AUTH_SECRET environment variable")
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:       getEnv("MUSICARD_ADDR", "127.0.0.1:8080"),
			BaseURL:    strings.TrimRight(baseURL, "/"),
			Production: production,
		},
		Storage: StorageConfig{
			Backend:     backend,
			DatabaseURL: databaseURL,
			LocalPath:   getEnv("MUSICARD_DATA_FILE", "data/profiles.json"),
			BackupPath:  getEnv("MUSICARD_BACKUP_FILE", "data/profiles.backup.json"),
		},
		Admin: AdminConfig{
			AllowList:     adminAllowList(production),
			SigningSecret: secret,
		},
		Features: FeatureFlags{
			SpotifySearch: getBool("FEATURE_SPOTIFY_SEARCH", true),
			YouTubeSearch: getBool("FEATURE_YOUTUBE_SEARCH", true),
			ImageUpload:   getBool("FEATURE_IMAGE_UPLOAD", true),
		},
		Spotify: SpotifyConfig{
			ClientID:    os.Getenv("SPOTIFY_CLIENT_ID"),
			RedirectURI: strings.TrimRight(baseURL, "/") + "/callback",
			TokenPath:   getEnv("MUSICARD_TOKEN_FILE", "data/spotify_token.json"),
		},
		LastFM: LastFMConfig{
			APIKey: os.Getenv("LASTFM_API_KEY"),
		},
		YouTube: YouTubeConfig{
			APIKey: os.Getenv("YOUTUBE_API_KEY"),
		},
		Blob: BlobConfig{
			Dir: getEnv("MUSICARD_BLOB_DIR", "data/blobs"),
		},
	}

	return cfg, nil
}

// adminAllowList returns the admin identities. Production is fixed to a
// single name; development reads a comma-separated environment list.
func adminAllowList(production bool) []string {
	if production {
		return []string{productionAdmin}
	}
	raw := os.Getenv("MUSICARD_ADMINS")
	if raw == "" {
		return []string{productionAdmin}
	}
	var admins []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			admins = append(admins, name)
		}
	}
	if len(admins) == 0 {
		return []string{productionAdmin}
	}
	return admins
}

// IsAdmin reports whether name is on the admin allow-list.
func (c AdminConfig) IsAdmin(name string) bool {
	for _, admin := range c.AllowList {
		if admin == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
