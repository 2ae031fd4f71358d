package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// MaxImageSize is the hard upload cap.
const MaxImageSize = 5 * 1024 * 1024 // 5 MiB

// allowedTypes is the MIME allow-list for uploads.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Validation and cache errors.
var (
	ErrInvalidFormat = errors.New("image format not allowed, must be jpeg, jpg, png or webp")
	ErrTooLarge      = fmt.Errorf("image exceeds %d byte limit", MaxImageSize)
	ErrCacheMiss     = errors.New("image cache miss")
)

// ValidFormat reports whether contentType is on the upload allow-list.
func ValidFormat(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return allowedTypes[mediaType]
}

// ValidSize reports whether size is within the upload cap.
func ValidSize(size int64) bool {
	return size > 0 && size <= MaxImageSize
}

// UploadResult is the outcome of an upload.
type UploadResult struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
	// Relocated is false when forwarding to the blob store failed and the
	// fallback value (data URL or original external URL) was returned.
	Relocated bool `json:"relocated"`
}

// CleanupResult is the outcome of a batch cleanup.
type CleanupResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Relay validates images and forwards them into blob storage, relocating
// provider-hosted cover art into owned URLs. Forwarding failures degrade to
// a fallback value rather than surfacing to the caller.
type Relay struct {
	blobs  BlobStore
	cache  Cache
	client *http.Client
	logger *log.Logger
}

// NewRelay creates a Relay. The cache may be nil, disabling external URL
// deduplication.
func NewRelay(blobs BlobStore, cache Cache, logger *log.Logger) *Relay {
	return &Relay{
		blobs:  blobs,
		cache:  cache,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Upload validates and forwards a user-supplied image, returning its public
// URL. If the blob store rejects the write the image is returned as a data
// URL so the caller still gets a renderable value.
func (r *Relay) Upload(ctx context.Context, data []byte, contentType, owner string, class Class) (*UploadResult, error) {
	if !ValidFormat(contentType) {
		return nil, ErrInvalidFormat
	}
	if !ValidSize(int64(len(data))) {
		return nil, ErrTooLarge
	}

	objectPath := fmt.Sprintf("%s/%s/%s", owner, class, uuid.NewString())
	url, size, err := r.blobs.Put(ctx, objectPath, contentType, data)
	if err != nil {
		r.logger.Warn("blob store rejected upload, returning data URL",
			"owner", owner, "class", class, "err", err)
		return &UploadResult{
			URL:  dataURL(contentType, data),
			Size: int64(len(data)),
		}, nil
	}

	return &UploadResult{URL: url, Size: size, Relocated: true}, nil
}

// UploadFromURL fetches an external image server-side and forwards it into
// blob storage, deduplicating through the cache. On any failure the
// original external URL is returned unmodified.
func (r *Relay) UploadFromURL(ctx context.Context, externalURL, owner string, class Class, source string) (*UploadResult, error) {
	if r.cache != nil {
		if info, err := r.cache.Lookup(ctx, owner, class, externalURL); err == nil {
			return &UploadResult{URL: info.BlobURL, Size: info.Size, Relocated: true}, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn("image cache lookup failed", "err", err)
		}
	}

	data, contentType, err := r.fetch(ctx, externalURL)
	if err != nil {
		r.logger.Warn("fetching external image failed, keeping original URL",
			"url", externalURL, "err", err)
		return &UploadResult{URL: externalURL}, nil
	}

	objectPath := fmt.Sprintf("%s/%s/%s", owner, class, uuid.NewString())
	url, size, err := r.blobs.Put(ctx, objectPath, contentType, data)
	if err != nil {
		r.logger.Warn("blob store rejected relocated image, keeping original URL",
			"url", externalURL, "err", err)
		return &UploadResult{URL: externalURL}, nil
	}

	if r.cache != nil {
		info := &CachedImageInfo{
			Owner:       owner,
			Class:       class,
			ExternalURL: externalURL,
			BlobURL:     url,
			CachedAt:    time.Now(),
			Size:        size,
			Source:      source,
		}
		if err := r.cache.Store(ctx, info); err != nil {
			r.logger.Warn("recording image cache entry failed", "err", err)
		}
	}

	return &UploadResult{URL: url, Size: size, Relocated: true}, nil
}

// Delete removes an uploaded image from blob storage.
func (r *Relay) Delete(ctx context.Context, url string) error {
	return r.blobs.Delete(ctx, url)
}

// CleanupOlderThan deletes stored objects older than the given number of
// days. Per-item failures are counted and never abort the batch.
func (r *Relay) CleanupOlderThan(ctx context.Context, days int) (*CleanupResult, error) {
	objects, err := r.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored images: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := &CleanupResult{}
	for _, obj := range objects {
		if !obj.UploadedAt.Before(cutoff) {
			continue
		}
		if err := r.blobs.Delete(ctx, obj.URL); err != nil {
			r.logger.Warn("deleting aged image failed", "url", obj.URL, "err", err)
			result.Failed++
			continue
		}
		result.Deleted++
	}
	return result, nil
}

// Stats summarizes stored objects for the admin endpoint.
type Stats struct {
	Count     int   `json:"count"`
	TotalSize int64 `json:"totalSize"`
}

// Stats returns object count and total byte size of the blob store.
func (r *Relay) Stats(ctx context.Context) (*Stats, error) {
	objects, err := r.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored images: %w", err)
	}
	s := &Stats{Count: len(objects)}
	for _, obj := range objects {
		s.TotalSize += obj.Size
	}
	return s, nil
}

// fetch downloads an external image, enforcing the same format and size
// rules as direct uploads.
func (r *Relay) fetch(ctx context.Context, externalURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, externalURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !ValidFormat(contentType) {
		return nil, "", ErrInvalidFormat
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}
	if !ValidSize(int64(len(data))) {
		return nil, "", ErrTooLarge
	}

	return data, contentType, nil
}

// dataURL renders an image inline for the blob-failure fallback.
func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
