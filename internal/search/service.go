package search

import (
	"context"

	"github.com/charmbracelet/log"
)

// Service dispatches searches to the preferred available provider, fails
// over to the remaining ones, and finally serves the static mock set.
type Service struct {
	providers []Provider
	logger    *log.Logger
}

// NewService creates a Service. Provider order is preference order.
func NewService(logger *log.Logger, providers ...Provider) *Service {
	return &Service{providers: providers, logger: logger}
}

// AvailableProviders lists the names of the providers usable right now.
func (s *Service) AvailableProviders() []string {
	names := []string{}
	for _, p := range s.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// SearchMusic returns track results from the first provider that answers,
// or the filtered mock set when every external provider is unavailable or
// failing.
func (s *Service) SearchMusic(ctx context.Context, query string) ([]Result, error) {
	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		results, err := p.SearchTracks(ctx, query)
		if err != nil {
			s.logger.Warn("provider search failed, trying next", "provider", p.Name(), "err", err)
			continue
		}
		return results, nil
	}
	return mockResults(ctx, query)
}

// SearchAlbums is SearchMusic for album results.
func (s *Service) SearchAlbums(ctx context.Context, query string) ([]AlbumResult, error) {
	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		results, err := p.SearchAlbums(ctx, query)
		if err != nil {
			s.logger.Warn("provider album search failed, trying next", "provider", p.Name(), "err", err)
			continue
		}
		return results, nil
	}
	return mockAlbumResults(ctx, query)
}
