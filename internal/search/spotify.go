package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// maxSpotifyResults caps the combined album+track result count.
const maxSpotifyResults = 10

// TokenSource supplies the current Spotify bearer token. The auth manager
// satisfies it.
type TokenSource interface {
	Token() *oauth2.Token
}

// SpotifyProvider is the token-gated primary provider.
type SpotifyProvider struct {
	tokens TokenSource
}

// NewSpotifyProvider creates a SpotifyProvider over a token source.
func NewSpotifyProvider(tokens TokenSource) *SpotifyProvider {
	return &SpotifyProvider{tokens: tokens}
}

// Name implements Provider.
func (p *SpotifyProvider) Name() string { return ProviderSpotify }

// Available reports whether a usable bearer token is held. An expired
// token simply makes the provider unavailable; no refresh is attempted.
func (p *SpotifyProvider) Available() bool {
	token := p.tokens.Token()
	return token != nil && token.Valid()
}

// SearchTracks runs a combined album+track search. Results are truncated
// to 10 combined, albums first, each group in provider-return order.
func (p *SpotifyProvider) SearchTracks(ctx context.Context, query string) ([]Result, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	page, err := client.Search(ctx, query,
		spotify.SearchTypeAlbum|spotify.SearchTypeTrack,
		spotify.Limit(maxSpotifyResults))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}

	return combinedResults(page), nil
}

// combinedResults flattens a combined search page: albums first, then
// tracks, each in provider-return order, truncated to 10 total.
func combinedResults(page *spotify.SearchResult) []Result {
	var results []Result
	if page.Albums != nil {
		for _, album := range page.Albums.Albums {
			if len(results) >= maxSpotifyResults {
				return results
			}
			results = append(results, albumAsTrackResult(album))
		}
	}
	if page.Tracks != nil {
		for _, track := range page.Tracks.Tracks {
			if len(results) >= maxSpotifyResults {
				return results
			}
			results = append(results, trackResult(track))
		}
	}
	return results
}

// SearchAlbums runs an album-only search.
func (p *SpotifyProvider) SearchAlbums(ctx context.Context, query string) ([]AlbumResult, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	page, err := client.Search(ctx, query, spotify.SearchTypeAlbum,
		spotify.Limit(maxSpotifyResults))
	if err != nil {
		return nil, fmt.Errorf("spotify album search: %w", err)
	}

	var results []AlbumResult
	if page.Albums != nil {
		for _, album := range page.Albums.Albums {
			results = append(results, albumResult(album))
		}
	}
	return results, nil
}

// client builds a zmb3 client over the current token.
func (p *SpotifyProvider) client(ctx context.Context) (*spotify.Client, error) {
	token := p.tokens.Token()
	if token == nil || !token.Valid() {
		return nil, fmt.Errorf("spotify token missing or expired")
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return spotify.New(httpClient, spotify.WithRetry(true)), nil
}

// trackResult converts a Spotify track hit.
func trackResult(track spotify.FullTrack) Result {
	r := Result{
		Title:      track.Name,
		Artist:     joinArtists(track.Artists),
		Album:      track.Album.Name,
		PreviewURL: track.PreviewURL,
		Provider:   ProviderSpotify,
	}
	r.ImageURL, r.ImageGenerated = firstImage(track.Album.Images)
	if t := track.Album.ReleaseDateTime(); !t.IsZero() {
		r.Year = t.Year()
	}
	return r
}

// albumAsTrackResult surfaces an album hit inside the combined music
// search, with the album name in the title slot.
func albumAsTrackResult(album spotify.SimpleAlbum) Result {
	r := Result{
		Title:    album.Name,
		Artist:   joinArtists(album.Artists),
		Album:    album.Name,
		Provider: ProviderSpotify,
	}
	r.ImageURL, r.ImageGenerated = firstImage(album.Images)
	if t := album.ReleaseDateTime(); !t.IsZero() {
		r.Year = t.Year()
	}
	return r
}

// albumResult converts a Spotify album hit.
func albumResult(album spotify.SimpleAlbum) AlbumResult {
	r := AlbumResult{
		Name:     album.Name,
		Artist:   joinArtists(album.Artists),
		Provider: ProviderSpotify,
	}
	r.ImageURL, r.ImageGenerated = firstImage(album.Images)
	if t := album.ReleaseDateTime(); !t.IsZero() {
		r.Year = t.Year()
	}
	return r
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// firstImage returns the first artwork URL, or the placeholder with the
// generated flag set.
func firstImage(images []spotify.Image) (string, bool) {
	if len(images) > 0 && images[0].URL != "" {
		return images[0].URL, false
	}
	return PlaceholderImage, true
}

var _ Provider = (*SpotifyProvider)(nil)
