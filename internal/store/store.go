// Package store persists MusiCard profiles. Two interchangeable backends
// exist: a local JSON file store and a PostgreSQL store; the Facade selects
// one and absorbs remote failures by falling back to the local store.
package store

import (
	"context"
	"errors"

	"github.com/musicard/musicard/internal/profile"
)

// ErrNotFound is returned when no profile exists for a username. It is a
// result, not a backend failure: the facade never falls back on it.
var ErrNotFound = errors.New("profile not found")

// Store is the profile persistence contract.
type Store interface {
	LoadAll(ctx context.Context) (map[string]*profile.Profile, error)
	Load(ctx context.Context, username string) (*profile.Profile, error)
	Save(ctx context.Context, p *profile.Profile) error
	IncrementViews(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
}

// Source tags which backend actually served an operation.
type Source string

// Operation sources.
const (
	// SourceRemote means the configured remote backend answered.
	SourceRemote Source = "remote"
	// SourceLocal means the store runs in local-only mode.
	SourceLocal Source = "local"
	// SourceFallback means the remote backend failed and the local store
	// absorbed the operation.
	SourceFallback Source = "fallback"
)

// Result pairs a value with the backend that produced it, so callers can
// distinguish degraded operation from true success.
type Result[T any] struct {
	Value  T      `json:"value"`
	Source Source `json:"source"`
}
