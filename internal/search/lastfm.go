package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	lastfmBaseURL   = "https://ws.audioscrobbler.com/2.0/"
	lastfmUserAgent = "musicard/1.0"
)

// Last.fm API error codes.
const (
	lastfmErrInvalidAPIKey = 10
	lastfmErrRateLimited   = 29
)

// Last.fm sentinel errors.
var (
	ErrLastFMRateLimited   = errors.New("last.fm rate limit exceeded")
	ErrLastFMInvalidAPIKey = errors.New("invalid last.fm API key")
)

// LastFMProvider is the key-gated secondary provider.
type LastFMProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewLastFMProvider creates a LastFMProvider. An empty API key leaves the
// provider permanently unavailable.
func NewLastFMProvider(apiKey string) *LastFMProvider {
	return &LastFMProvider{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: lastfmBaseURL,
	}
}

// Name implements Provider.
func (p *LastFMProvider) Name() string { return ProviderLastFM }

// Available reports whether an API key is configured.
func (p *LastFMProvider) Available() bool { return p.apiKey != "" }

// SearchTracks queries track.search.
func (p *LastFMProvider) SearchTracks(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{
		"method":  {"track.search"},
		"track":   {query},
		"limit":   {"10"},
		"format":  {"json"},
		"api_key": {p.apiKey},
	}

	body, err := p.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}

	var resp trackSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing track search response: %w", err)
	}

	results := make([]Result, 0, len(resp.Results.TrackMatches.Track))
	for _, t := range resp.Results.TrackMatches.Track {
		r := Result{
			Title:    t.Name,
			Artist:   t.Artist,
			Provider: ProviderLastFM,
		}
		r.ImageURL, r.ImageGenerated = lastfmImage(t.Image)
		results = append(results, r)
	}
	return results, nil
}

// SearchAlbums queries album.search.
func (p *LastFMProvider) SearchAlbums(ctx context.Context, query string) ([]AlbumResult, error) {
	params := url.Values{
		"method":  {"album.search"},
		"album":   {query},
		"limit":   {"10"},
		"format":  {"json"},
		"api_key": {p.apiKey},
	}

	body, err := p.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching albums: %w", err)
	}

	var resp albumSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing album search response: %w", err)
	}

	results := make([]AlbumResult, 0, len(resp.Results.AlbumMatches.Album))
	for _, a := range resp.Results.AlbumMatches.Album {
		r := AlbumResult{
			Name:     a.Name,
			Artist:   a.Artist,
			Provider: ProviderLastFM,
		}
		r.ImageURL, r.ImageGenerated = lastfmImage(a.Image)
		results = append(results, r)
	}
	return results, nil
}

// doRequest performs an HTTP GET with retry on rate limit.
// Retries up to 3 times with exponential backoff (1s, 2s, 4s).
func (p *LastFMProvider) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := p.baseURL + "?" + params.Encode()

	delays := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error

	for attempt := 0; attempt <= len(delays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delays[attempt-1]):
			}
		}

		body, err := p.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrLastFMRateLimited) {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (p *LastFMProvider) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", lastfmUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr lastfmAPIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case lastfmErrRateLimited:
			return nil, ErrLastFMRateLimited
		case lastfmErrInvalidAPIKey:
			return nil, ErrLastFMInvalidAPIKey
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	return body, nil
}

// lastfmImage picks the largest non-empty image, or the placeholder.
func lastfmImage(images []lastfmImageRef) (string, bool) {
	for i := len(images) - 1; i >= 0; i-- {
		if images[i].URL != "" {
			return images[i].URL, false
		}
	}
	return PlaceholderImage, true
}

// Response shapes for the subset of the Last.fm API we use.

type lastfmImageRef struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type trackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name   string           `json:"name"`
				Artist string           `json:"artist"`
				URL    string           `json:"url"`
				Image  []lastfmImageRef `json:"image"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type albumSearchResponse struct {
	Results struct {
		AlbumMatches struct {
			Album []struct {
				Name   string           `json:"name"`
				Artist string           `json:"artist"`
				URL    string           `json:"url"`
				Image  []lastfmImageRef `json:"image"`
			} `json:"album"`
		} `json:"albummatches"`
	} `json:"results"`
}

type lastfmAPIError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

var _ Provider = (*LastFMProvider)(nil)
