package images

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestRelay(t *testing.T) (*Relay, *FSBlobStore) {
	t.Helper()
	blobs := NewFSBlobStore(t.TempDir(), "http://127.0.0.1:8080")
	return NewRelay(blobs, NewMemoryCache(), testLogger()), blobs
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/jpg", true},
		{"image/png", true},
		{"image/webp", true},
		{"image/gif", false},
		{"image/svg+xml", false},
		{"text/html", false},
		{"IMAGE/PNG", true},
		{"image/png; charset=binary", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := ValidFormat(tt.contentType); got != tt.want {
				t.Errorf("ValidFormat(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestValidSize(t *testing.T) {
	if ValidSize(MaxImageSize + 1) {
		t.Error("oversized payload accepted")
	}
	if !ValidSize(MaxImageSize) {
		t.Error("payload at cap rejected")
	}
	if ValidSize(0) {
		t.Error("empty payload accepted")
	}
}

func TestUpload(t *testing.T) {
	relay, _ := newTestRelay(t)

	res, err := relay.Upload(context.Background(), []byte("png-bytes"), "image/png", "alice", ClassIcon)
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	if !res.Relocated {
		t.Error("Relocated = false for successful upload")
	}
	if !strings.HasPrefix(res.URL, "http://127.0.0.1:8080/blob/alice/icon/") {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Size != int64(len("png-bytes")) {
		t.Errorf("Size = %d", res.Size)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	relay, _ := newTestRelay(t)
	ctx := context.Background()

	if _, err := relay.Upload(ctx, []byte("x"), "image/gif", "alice", ClassIcon); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("gif upload = %v, want ErrInvalidFormat", err)
	}

	big := make([]byte, MaxImageSize+1)
	if _, err := relay.Upload(ctx, big, "image/png", "alice", ClassIcon); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized upload = %v, want ErrTooLarge", err)
	}
}

// failingBlobStore rejects every write.
type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, string, []byte) (string, int64, error) {
	return "", 0, errors.New("blob store down")
}
func (failingBlobStore) Delete(context.Context, string) error { return errors.New("blob store down") }
func (failingBlobStore) List(context.Context) ([]ObjectInfo, error) {
	return nil, errors.New("blob store down")
}

func TestUploadFallsBackToDataURL(t *testing.T) {
	relay := NewRelay(failingBlobStore{}, nil, testLogger())

	res, err := relay.Upload(context.Background(), []byte("png-bytes"), "image/png", "alice", ClassIcon)
	if err != nil {
		t.Fatalf("Upload() = %v, failures must be absorbed", err)
	}
	if res.Relocated {
		t.Error("Relocated = true for fallback result")
	}
	if !strings.HasPrefix(res.URL, "data:image/png;base64,") {
		t.Errorf("URL = %q, want data URL", res.URL)
	}
}

func TestUploadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	relay, _ := newTestRelay(t)

	res, err := relay.UploadFromURL(context.Background(), srv.URL+"/cover.jpg", "alice", ClassAlbum, SourceSpotify)
	if err != nil {
		t.Fatalf("UploadFromURL() = %v", err)
	}
	if !res.Relocated {
		t.Error("Relocated = false")
	}
	if !strings.Contains(res.URL, "/blob/alice/album/") {
		t.Errorf("URL = %q", res.URL)
	}

	// Second call is served from the cache: same blob URL, no refetch.
	srv.Close()
	again, err := relay.UploadFromURL(context.Background(), srv.URL+"/cover.jpg", "alice", ClassAlbum, SourceSpotify)
	if err != nil {
		t.Fatalf("cached UploadFromURL() = %v", err)
	}
	if again.URL != res.URL {
		t.Errorf("cached URL = %q, want %q", again.URL, res.URL)
	}
}

func TestUploadFromURLKeepsOriginalOnFailure(t *testing.T) {
	relay, _ := newTestRelay(t)

	// Nothing listens here, the fetch fails.
	external := "http://127.0.0.1:1/cover.jpg"
	res, err := relay.UploadFromURL(context.Background(), external, "alice", ClassAlbum, SourceLastFM)
	if err != nil {
		t.Fatalf("UploadFromURL() = %v, failures must be absorbed", err)
	}
	if res.Relocated {
		t.Error("Relocated = true for fallback result")
	}
	if res.URL != external {
		t.Errorf("URL = %q, want original %q", res.URL, external)
	}
}

func TestUploadFromURLRejectsDisallowedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write([]byte("gif-bytes"))
	}))
	defer srv.Close()

	relay, _ := newTestRelay(t)
	res, err := relay.UploadFromURL(context.Background(), srv.URL+"/a.gif", "alice", ClassAlbum, SourceManual)
	if err != nil {
		t.Fatalf("UploadFromURL() = %v", err)
	}
	// Disallowed upstream content falls back to the original URL.
	if res.Relocated {
		t.Error("gif was relocated into blob storage")
	}
}

func TestDelete(t *testing.T) {
	relay, blobs := newTestRelay(t)
	ctx := context.Background()

	res, err := relay.Upload(ctx, []byte("png-bytes"), "image/png", "alice", ClassIcon)
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	if err := relay.Delete(ctx, res.URL); err != nil {
		t.Fatalf("Delete() = %v", err)
	}

	objects, err := blobs.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("store holds %d objects after delete", len(objects))
	}

	if err := relay.Delete(ctx, "https://elsewhere.example/x.png"); !errors.Is(err, ErrNotStored) {
		t.Errorf("Delete(foreign URL) = %v, want ErrNotStored", err)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	relay, blobs := newTestRelay(t)
	ctx := context.Background()

	old, err := relay.Upload(ctx, []byte("old"), "image/png", "alice", ClassIcon)
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	if _, err := relay.Upload(ctx, []byte("new"), "image/png", "alice", ClassIcon); err != nil {
		t.Fatalf("Upload() = %v", err)
	}

	// Age the first object past the threshold.
	rel := strings.TrimPrefix(old.URL, "http://127.0.0.1:8080/blob/")
	oldTime := time.Now().AddDate(0, 0, -31)
	if err := os.Chtimes(filepath.Join(blobs.Root(), filepath.FromSlash(rel)), oldTime, oldTime); err != nil {
		t.Fatalf("aging blob: %v", err)
	}

	result, err := relay.CleanupOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOlderThan() = %v", err)
	}
	if result.Deleted != 1 || result.Failed != 0 {
		t.Errorf("cleanup = %+v, want 1 deleted, 0 failed", result)
	}

	objects, err := blobs.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(objects) != 1 {
		t.Errorf("store holds %d objects, want 1", len(objects))
	}
}

func TestStats(t *testing.T) {
	relay, _ := newTestRelay(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := relay.Upload(ctx, []byte("12345"), "image/png", "alice", ClassIcon); err != nil {
			t.Fatalf("Upload() = %v", err)
		}
	}

	stats, err := relay.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() = %v", err)
	}
	if stats.Count != 3 || stats.TotalSize != 15 {
		t.Errorf("Stats = %+v, want count 3 size 15", stats)
	}
}
