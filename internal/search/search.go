// Package search queries external music-metadata providers for track and
// album results, failing over between providers and finally to a static
// mock set.
package search

import "context"

// Provider name tags carried on every result.
const (
	ProviderSpotify = "spotify"
	ProviderLastFM  = "lastfm"
	ProviderMock    = "mock"
)

// PlaceholderImage is substituted when a provider returns no artwork.
const PlaceholderImage = "/static/placeholder-cover.svg"

// Result is a single track search hit.
type Result struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	// ImageURL is the cover art; ImageGenerated marks a substituted
	// placeholder because the provider returned none.
	ImageURL       string `json:"imageUrl"`
	ImageGenerated bool   `json:"imageGenerated"`
	PreviewURL     string `json:"previewUrl,omitempty"`
	Genre          string `json:"genre,omitempty"`
	Year           int    `json:"year,omitempty"`
	Provider       string `json:"provider"`
}

// AlbumResult is a single album search hit.
type AlbumResult struct {
	Name           string `json:"name"`
	Artist         string `json:"artist"`
	ImageURL       string `json:"imageUrl"`
	ImageGenerated bool   `json:"imageGenerated"`
	Year           int    `json:"year,omitempty"`
	Provider       string `json:"provider"`
}

// Provider is an external music-metadata search service.
type Provider interface {
	Name() string
	// Available reports whether the provider can be queried right now
	// (token present and unexpired, or key configured).
	Available() bool
	SearchTracks(ctx context.Context, query string) ([]Result, error)
	SearchAlbums(ctx context.Context, query string) ([]AlbumResult, error)
}
