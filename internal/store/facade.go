package store

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/musicard/musicard/internal/profile"
)

// Facade is the backend selector the rest of the application talks to.
// In local-only mode every operation runs against the local store. With a
// remote backend configured, any remote failure other than ErrNotFound is
// logged and the operation re-invoked on the local store, so callers see a
// degraded success instead of an error. It is a single fallback attempt,
// no retry or backoff.
type Facade struct {
	remote Store // nil in local-only mode
	local  *FileStore
	logger *log.Logger
}

// NewFacade creates a Facade. remote may be nil for local-only operation.
func NewFacade(remote Store, local *FileStore, logger *log.Logger) *Facade {
	return &Facade{remote: remote, local: local, logger: logger}
}

// LocalOnly reports whether no remote backend is configured.
func (f *Facade) LocalOnly() bool {
	return f.remote == nil
}

// LoadAll returns every profile, tagged with the serving backend.
func (f *Facade) LoadAll(ctx context.Context) (Result[map[string]*profile.Profile], error) {
	if f.remote == nil {
		profiles, err := f.local.LoadAll(ctx)
		return Result[map[string]*profile.Profile]{Value: profiles, Source: SourceLocal}, err
	}

	profiles, err := f.remote.LoadAll(ctx)
	if err == nil {
		return Result[map[string]*profile.Profile]{Value: profiles, Source: SourceRemote}, nil
	}

	f.logger.Warn("remote LoadAll failed, serving local data", "err", err)
	profiles, lerr := f.local.LoadAll(ctx)
	return Result[map[string]*profile.Profile]{Value: profiles, Source: SourceFallback}, lerr
}

// Load returns the profile for a username, tagged with the serving
// backend. ErrNotFound is an answer, not a failure: it never triggers the
// fallback.
func (f *Facade) Load(ctx context.Context, username string) (Result[*profile.Profile], error) {
	if f.remote == nil {
		p, err := f.local.Load(ctx, username)
		return Result[*profile.Profile]{Value: p, Source: SourceLocal}, err
	}

	p, err := f.remote.Load(ctx, username)
	if err == nil || errors.Is(err, ErrNotFound) {
		return Result[*profile.Profile]{Value: p, Source: SourceRemote}, err
	}

	f.logger.Warn("remote Load failed, serving local data", "username", username, "err", err)
	p, lerr := f.local.Load(ctx, username)
	return Result[*profile.Profile]{Value: p, Source: SourceFallback}, lerr
}

// Save persists a profile and reports which backend took the write.
func (f *Facade) Save(ctx context.Context, p *profile.Profile) (Source, error) {
	if f.remote == nil {
		return SourceLocal, f.local.Save(ctx, p)
	}

	if err := f.remote.Save(ctx, p); err != nil {
		f.logger.Warn("remote Save failed, writing local store", "username", p.Username, "err", err)
		return SourceFallback, f.local.Save(ctx, p)
	}
	return SourceRemote, nil
}

// IncrementViews bumps the view counter and reports the serving backend.
func (f *Facade) IncrementViews(ctx context.Context, username string) (Source, error) {
	if f.remote == nil {
		return SourceLocal, f.local.IncrementViews(ctx, username)
	}

	err := f.remote.IncrementViews(ctx, username)
	if err == nil || errors.Is(err, ErrNotFound) {
		return SourceRemote, err
	}

	f.logger.Warn("remote IncrementViews failed, bumping local store", "username", username, "err", err)
	return SourceFallback, f.local.IncrementViews(ctx, username)
}

// Delete removes a profile and reports the serving backend.
func (f *Facade) Delete(ctx context.Context, username string) (Source, error) {
	if f.remote == nil {
		return SourceLocal, f.local.Delete(ctx, username)
	}

	err := f.remote.Delete(ctx, username)
	if err == nil || errors.Is(err, ErrNotFound) {
		return SourceRemote, err
	}

	f.logger.Warn("remote Delete failed, deleting from local store", "username", username, "err", err)
	return SourceFallback, f.local.Delete(ctx, username)
}
