package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore is an object store addressed by path, returning a public URL
// per stored object.
type BlobStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (url string, size int64, err error)
	Delete(ctx context.Context, url string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	URL        string
	Size       int64
	UploadedAt time.Time
}

// ErrNotStored is returned when deleting a URL this store does not own.
var ErrNotStored = errors.New("url not owned by this blob store")

// FSBlobStore stores blobs on the local filesystem and serves them from the
// application itself under /blob/. Upload time is the file modification
// time.
type FSBlobStore struct {
	root    string
	baseURL string // e.g. http://127.0.0.1:8080
}

// URLPrefix is the public path prefix blobs are served from.
const URLPrefix = "/blob/"

// NewFSBlobStore creates a filesystem blob store rooted at dir.
func NewFSBlobStore(dir, baseURL string) *FSBlobStore {
	return &FSBlobStore{root: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Root returns the directory blobs are stored under.
func (s *FSBlobStore) Root() string {
	return s.root
}

// Put writes data under objectPath, appending a content-type derived
// extension when the path has none.
func (s *FSBlobStore) Put(_ context.Context, objectPath, contentType string, data []byte) (string, int64, error) {
	clean := path.Clean("/" + objectPath)
	if path.Ext(clean) == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			clean += exts[0]
		}
	}

	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return "", 0, fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0600); err != nil {
		return "", 0, fmt.Errorf("writing blob: %w", err)
	}

	return s.baseURL + URLPrefix + strings.TrimPrefix(clean, "/"), int64(len(data)), nil
}

// Delete removes the object behind a URL previously returned by Put.
func (s *FSBlobStore) Delete(_ context.Context, url string) error {
	rel, ok := s.relPath(url)
	if !ok {
		return ErrNotStored
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// List walks the store and returns every object with its upload time.
func (s *FSBlobStore) List(_ context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			URL:        s.baseURL + URLPrefix + filepath.ToSlash(rel),
			Size:       info.Size(),
			UploadedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	return objects, nil
}

// relPath maps a public URL back to the path inside the store.
func (s *FSBlobStore) relPath(url string) (string, bool) {
	prefix := s.baseURL + URLPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(url, prefix)
	if rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	return rel, true
}

var _ BlobStore = (*FSBlobStore)(nil)
