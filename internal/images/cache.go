// Package images relocates profile artwork into blob storage: direct
// uploads, server-side fetches of provider-hosted cover art, and the cache
// and cleanup bookkeeping around them.
package images

import (
	"context"
	"sync"
	"time"
)

// Retention windows for relocated external images.
const (
	// FreshTTL is how long a cache entry is trusted.
	FreshTTL = 30 * 24 * time.Hour
	// PurgeTTL is the age past which entries must be removed.
	PurgeTTL = 60 * 24 * time.Hour
)

// Class distinguishes what a cached image is used for.
type Class string

// Image classes.
const (
	ClassIcon  Class = "icon"
	ClassAlbum Class = "album"
)

// Image origin tags.
const (
	SourceSpotify = "spotify"
	SourceLastFM  = "lastfm"
	SourceManual  = "manual"
)

// CachedImageInfo maps an external image URL, scoped by owner and class, to
// its relocated blob URL.
type CachedImageInfo struct {
	Owner       string    `json:"owner"`
	Class       Class     `json:"class"`
	ExternalURL string    `json:"externalUrl"`
	BlobURL     string    `json:"blobUrl"`
	CachedAt    time.Time `json:"cachedAt"`
	Size        int64     `json:"size"`
	Source      string    `json:"source"`
}

// Cache stores CachedImageInfo entries. Lookup must not return entries
// older than FreshTTL.
type Cache interface {
	Lookup(ctx context.Context, owner string, class Class, externalURL string) (*CachedImageInfo, error)
	Store(ctx context.Context, info *CachedImageInfo) error
	CleanupOld(ctx context.Context, olderThan time.Duration) (int, error)
}

type cacheKey struct {
	owner       string
	class       Class
	externalURL string
}

// MemoryCache is a mutex-guarded in-memory Cache, used when no database is
// configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*CachedImageInfo
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[cacheKey]*CachedImageInfo)}
}

// Lookup returns the entry for an external URL if present and fresh.
func (c *MemoryCache) Lookup(_ context.Context, owner string, class Class, externalURL string) (*CachedImageInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.entries[cacheKey{owner, class, externalURL}]
	if !ok || time.Since(info.CachedAt) > FreshTTL {
		return nil, ErrCacheMiss
	}
	return info, nil
}

// Store records an entry, replacing any existing one for the same key.
func (c *MemoryCache) Store(_ context.Context, info *CachedImageInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{info.Owner, info.Class, info.ExternalURL}] = info
	return nil
}

// CleanupOld removes entries cached before the cutoff and returns the count.
func (c *MemoryCache) CleanupOld(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key, info := range c.entries {
		if info.CachedAt.Before(cutoff) {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ Cache = (*MemoryCache)(nil)
