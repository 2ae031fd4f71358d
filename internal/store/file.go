package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/musicard/musicard/internal/profile"
)

// FileStore persists profiles as a single JSON document of
// username -> profile, plus a single backup slot holding the prior full
// dataset, written before every save.
type FileStore struct {
	path       string
	backupPath string
	mu         sync.Mutex
}

// NewFileStore creates a FileStore writing to path, with the backup slot
// at backupPath.
func NewFileStore(path, backupPath string) *FileStore {
	return &FileStore{path: path, backupPath: backupPath}
}

// LoadAll returns every stored profile keyed by username.
func (s *FileStore) LoadAll(_ context.Context) (map[string]*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Load returns the profile for a username, or ErrNotFound.
func (s *FileStore) Load(_ context.Context, username string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readAll()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[username]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Save writes a profile as a full-document replace of its slot. The prior
// dataset is snapshotted into the backup file first. CreatedAt and the
// view counter of an existing profile are preserved; UpdatedAt is stamped
// with the current time.
func (s *FileStore) Save(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readAll()
	if err != nil {
		return err
	}

	if err := s.writeBackup(profiles); err != nil {
		return err
	}

	now := time.Now()
	saved := *p
	if existing, ok := profiles[p.Username]; ok {
		saved.CreatedAt = existing.CreatedAt
		saved.ViewCount = existing.ViewCount
	} else {
		saved.CreatedAt = now
		saved.ViewCount = 0
	}
	saved.UpdatedAt = now

	profiles[p.Username] = &saved
	if err := s.writeAll(profiles); err != nil {
		return err
	}

	p.CreatedAt = saved.CreatedAt
	p.UpdatedAt = saved.UpdatedAt
	p.ViewCount = saved.ViewCount
	return nil
}

// IncrementViews bumps the view counter for a username.
func (s *FileStore) IncrementViews(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readAll()
	if err != nil {
		return err
	}
	p, ok := profiles[username]
	if !ok {
		return ErrNotFound
	}
	p.ViewCount++
	return s.writeAll(profiles)
}

// Delete removes a profile.
func (s *FileStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := profiles[username]; !ok {
		return ErrNotFound
	}
	if err := s.writeBackup(profiles); err != nil {
		return err
	}
	delete(profiles, username)
	return s.writeAll(profiles)
}

// readAll loads the document. A missing file is an empty dataset.
func (s *FileStore) readAll() (map[string]*profile.Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*profile.Profile), nil
		}
		return nil, fmt.Errorf("reading profile store: %w", err)
	}

	profiles := make(map[string]*profile.Profile)
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profile store: %w", err)
	}
	return profiles, nil
}

// writeAll replaces the document atomically via a temp file rename.
func (s *FileStore) writeAll(profiles map[string]*profile.Profile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing profile store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing profile store: %w", err)
	}
	return nil
}

// writeBackup snapshots the current dataset into the single backup slot.
func (s *FileStore) writeBackup(profiles map[string]*profile.Profile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.backupPath), 0700); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(s.backupPath, data, 0600); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
