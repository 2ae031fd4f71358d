package store

import (
	"context"
	"errors"

	"github.com/musicard/musicard/internal/db"
	"github.com/musicard/musicard/internal/profile"
)

// PGStore adapts the PostgreSQL profile repository to the Store contract.
type PGStore struct {
	database *db.DB
}

// NewPGStore creates a PGStore over an open database.
func NewPGStore(database *db.DB) *PGStore {
	return &PGStore{database: database}
}

// LoadAll returns every stored profile keyed by username.
func (s *PGStore) LoadAll(ctx context.Context) (map[string]*profile.Profile, error) {
	return s.database.Profiles().GetAll(ctx)
}

// Load returns the profile for a username, or ErrNotFound.
func (s *PGStore) Load(ctx context.Context, username string) (*profile.Profile, error) {
	p, err := s.database.Profiles().Get(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// Save writes a profile as a full-document replace.
func (s *PGStore) Save(ctx context.Context, p *profile.Profile) error {
	return s.database.Profiles().Save(ctx, p)
}

// IncrementViews bumps the view counter for a username.
func (s *PGStore) IncrementViews(ctx context.Context, username string) error {
	err := s.database.Profiles().IncrementViews(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Delete removes a profile and its songs.
func (s *PGStore) Delete(ctx context.Context, username string) error {
	err := s.database.Profiles().Delete(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

var _ Store = (*PGStore)(nil)
