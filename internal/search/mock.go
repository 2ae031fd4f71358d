package search

import (
	"context"
	"strings"
	"time"
)

// mockDelay simulates provider latency so the UI behaves the same on the
// fallback path.
const mockDelay = 150 * time.Millisecond

// mockCatalog is the static last-resort result set.
var mockCatalog = []Result{
	{Title: "Bohemian Rhapsody", Artist: "Queen", Album: "A Night at the Opera", Genre: "rock", Year: 1975},
	{Title: "Billie Jean", Artist: "Michael Jackson", Album: "Thriller", Genre: "pop", Year: 1982},
	{Title: "Smells Like Teen Spirit", Artist: "Nirvana", Album: "Nevermind", Genre: "grunge", Year: 1991},
	{Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "jazz", Year: 1959},
	{Title: "Idioteque", Artist: "Radiohead", Album: "Kid A", Genre: "electronic", Year: 2000},
	{Title: "Juicy", Artist: "The Notorious B.I.G.", Album: "Ready to Die", Genre: "hip hop", Year: 1994},
	{Title: "Dancing Queen", Artist: "ABBA", Album: "Arrival", Genre: "disco", Year: 1976},
	{Title: "Clair de Lune", Artist: "Claude Debussy", Album: "Suite bergamasque", Genre: "classical", Year: 1905},
	{Title: "No Woman No Cry", Artist: "Bob Marley & The Wailers", Album: "Natty Dread", Genre: "reggae", Year: 1974},
	{Title: "Paranoid", Artist: "Black Sabbath", Album: "Paranoid", Genre: "metal", Year: 1970},
}

// mockResults filters the static catalog by case-insensitive substring
// match on title or artist, after a simulated delay.
func mockResults(ctx context.Context, query string) ([]Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mockDelay):
	}

	q := strings.ToLower(strings.TrimSpace(query))
	results := []Result{}
	for _, r := range mockCatalog {
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Artist), q) {
			continue
		}
		r.Provider = ProviderMock
		r.ImageURL = PlaceholderImage
		r.ImageGenerated = true
		results = append(results, r)
	}
	return results, nil
}

// mockAlbumResults derives album hits from the catalog with the same
// filtering rules.
func mockAlbumResults(ctx context.Context, query string) ([]AlbumResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mockDelay):
	}

	q := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]bool)
	results := []AlbumResult{}
	for _, r := range mockCatalog {
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Album), q) &&
			!strings.Contains(strings.ToLower(r.Artist), q) {
			continue
		}
		if seen[r.Album] {
			continue
		}
		seen[r.Album] = true
		results = append(results, AlbumResult{
			Name:           r.Album,
			Artist:         r.Artist,
			ImageURL:       PlaceholderImage,
			ImageGenerated: true,
			Year:           r.Year,
			Provider:       ProviderMock,
		})
	}
	return results, nil
}
