package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/musicard/musicard/internal/profile"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(
		filepath.Join(dir, "profiles.json"),
		filepath.Join(dir, "profiles.backup.json"),
	)
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	p := &profile.Profile{
		Username:    "alice",
		DisplayName: "Alice",
		Bio:         "music lover",
		Theme:       profile.ThemeSunset,
		Layout:      profile.LayoutGrid4x4,
		Social:      profile.SocialLinks{Twitter: "alice_music"},
		Songs: []profile.Song{
			{Title: "A", Artist: "B", Genre: "rock", ReleaseYear: 1998},
			{Title: "C", Artist: "D", CoverURL: "https://img.example/c.jpg"},
		},
		Public: true,
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got.DisplayName != "Alice" || got.Bio != "music lover" {
		t.Errorf("profile fields lost: %+v", got)
	}
	if got.Theme != profile.ThemeSunset || got.Layout != profile.LayoutGrid4x4 {
		t.Errorf("theme/layout lost: %q %q", got.Theme, got.Layout)
	}
	if got.Social.Twitter != "alice_music" {
		t.Errorf("social links lost: %+v", got.Social)
	}
	if len(got.Songs) != len(p.Songs) {
		t.Fatalf("songs = %d, want %d", len(got.Songs), len(p.Songs))
	}
	if got.Songs[0].Title != "A" || got.Songs[0].ReleaseYear != 1998 {
		t.Errorf("song fields lost: %+v", got.Songs[0])
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped on save")
	}
}

func TestFileStoreScenarioAlice(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	p := &profile.Profile{
		Username: "alice",
		Songs:    []profile.Song{{Title: "A", Artist: "B"}},
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if len(got.Songs) != 1 || got.Songs[0].Title != "A" {
		t.Errorf("Load(alice) songs = %+v, want one song titled A", got.Songs)
	}
}

func TestFileStoreUpdatedAtMonotonic(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	p := &profile.Profile{Username: "alice"}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	first := p.UpdatedAt
	created := p.CreatedAt

	time.Sleep(10 * time.Millisecond)
	p.Bio = "updated"
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("second Save() = %v", err)
	}

	if p.UpdatedAt.Before(first) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", first, p.UpdatedAt)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, p.CreatedAt)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	s := newFileStore(t)
	if _, err := s.Load(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileStorePreservesViewCount(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	p := &profile.Profile{Username: "alice"}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.IncrementViews(ctx, "alice"); err != nil {
			t.Fatalf("IncrementViews() = %v", err)
		}
	}

	// A fresh save of edited content keeps the counter.
	p.Bio = "edited"
	p.ViewCount = 0
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got.ViewCount != 3 {
		t.Errorf("ViewCount = %d, want 3", got.ViewCount)
	}
}

func TestFileStoreIncrementViewsMissing(t *testing.T) {
	s := newFileStore(t)
	if err := s.IncrementViews(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("IncrementViews(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreBackupSlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.json")
	backup := filepath.Join(dir, "profiles.backup.json")
	s := NewFileStore(path, backup)
	ctx := context.Background()

	if err := s.Save(ctx, &profile.Profile{Username: "alice"}); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := s.Save(ctx, &profile.Profile{Username: "bob"}); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	// The backup holds the dataset as it was before the last save: only alice.
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	var snapshot map[string]*profile.Profile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("parsing backup: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("backup holds %d profiles, want 1", len(snapshot))
	}
	if _, ok := snapshot["alice"]; !ok {
		t.Error("backup missing alice")
	}
}

func TestFileStoreDelete(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &profile.Profile{Username: "alice"}); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := s.Load(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(deleted) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}
