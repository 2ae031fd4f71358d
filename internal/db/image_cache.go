package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musicard/musicard/internal/images"
)

// ImageCacheRepository persists relocated external images in the
// image_cache table.
type ImageCacheRepository struct {
	pool *pgxpool.Pool
}

// Lookup returns the cache entry for an external URL, scoped by owner and
// image class. Entries older than images.FreshTTL are not trusted and
// reported as absent.
func (r *ImageCacheRepository) Lookup(ctx context.Context, owner string, class images.Class, externalURL string) (*images.CachedImageInfo, error) {
	query := `
		SELECT owner, class, external_url, blob_url, cached_at, size_bytes, source
		FROM image_cache
		WHERE owner = $1 AND class = $2 AND external_url = $3
	`
	var info images.CachedImageInfo
	err := r.pool.QueryRow(ctx, query, owner, string(class), externalURL).Scan(
		&info.Owner,
		&info.Class,
		&info.ExternalURL,
		&info.BlobURL,
		&info.CachedAt,
		&info.Size,
		&info.Source,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, images.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("querying image cache: %w", err)
	}
	if time.Since(info.CachedAt) > images.FreshTTL {
		return nil, images.ErrCacheMiss
	}
	return &info, nil
}

// Store upserts a cache entry.
func (r *ImageCacheRepository) Store(ctx context.Context, info *images.CachedImageInfo) error {
	query := `
		INSERT INTO image_cache (owner, class, external_url, blob_url, cached_at, size_bytes, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner, class, external_url) DO UPDATE SET
			blob_url = EXCLUDED.blob_url,
			cached_at = EXCLUDED.cached_at,
			size_bytes = EXCLUDED.size_bytes,
			source = EXCLUDED.source
	`
	_, err := r.pool.Exec(ctx, query,
		info.Owner,
		string(info.Class),
		info.ExternalURL,
		info.BlobURL,
		info.CachedAt,
		info.Size,
		info.Source,
	)
	if err != nil {
		return fmt.Errorf("storing image cache entry: %w", err)
	}
	return nil
}

// CleanupOld removes entries cached before the cutoff and returns how many
// were deleted.
func (r *ImageCacheRepository) CleanupOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := r.pool.Exec(ctx,
		`DELETE FROM image_cache WHERE cached_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning image cache: %w", err)
	}
	return int(result.RowsAffected()), nil
}
