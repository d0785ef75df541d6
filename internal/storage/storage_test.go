package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// minimal path-style S3 endpoint backed by a map
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/renders/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*S3Store, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: make(map[string][]byte), types: make(map[string]string)}
	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)

	store, err := NewS3Store(Options{
		Endpoint:        server.URL,
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		Bucket:          "renders",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	return store, bucket
}

func TestS3StoreRoundTrip(t *testing.T) {
	store, bucket := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(src, []byte("rendered video"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(ctx, "renders/u1/final.mp4", src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := bucket.types["renders/u1/final.mp4"]; got != "video/mp4" {
		t.Errorf("content type = %q, want video/mp4", got)
	}

	dest := filepath.Join(dir, "copy", "final.mp4")
	if err := store.Download(ctx, "renders/u1/final.mp4", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "rendered video" {
		t.Errorf("downloaded %q, %v", data, err)
	}

	if err := store.Delete(ctx, "renders/u1/final.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	err = store.Download(ctx, "renders/u1/final.mp4", dest)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("failed download left a file behind")
	}
}

func TestS3StorePresign(t *testing.T) {
	store, _ := newTestStore(t)

	raw, err := store.PresignURL(context.Background(), "heads/u1/head.mp4", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/renders/heads/u1/head.mp4" {
		t.Errorf("path = %s", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "900" {
		t.Errorf("X-Amz-Expires = %q, want 900", got)
	}
}

func TestNewS3StoreValidation(t *testing.T) {
	if _, err := NewS3Store(Options{AccessKeyID: "id", SecretAccessKey: "secret"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewS3Store(Options{Bucket: "b"}); err == nil {
		t.Error("expected error without credentials")
	}
}

type countingPresigner struct {
	calls int
}

func (p *countingPresigner) PresignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	p.calls++
	return "https://r2.example.com/" + key + "?v=" + string(rune('0'+p.calls)), nil
}

func TestPresignCache(t *testing.T) {
	p := &countingPresigner{}
	cache := NewPresignCache(p, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	first, _ := cache.URL(ctx, "a.mp4")
	second, _ := cache.URL(ctx, "a.mp4")
	if first != second || p.calls != 1 {
		t.Errorf("expected cached URL, got %q then %q after %d calls", first, second, p.calls)
	}

	now = now.Add(55 * time.Minute)
	third, _ := cache.URL(ctx, "a.mp4")
	if third == first || p.calls != 2 {
		t.Errorf("expected refresh inside the expiry margin, calls = %d", p.calls)
	}

	cache.Forget("a.mp4")
	if _, err := cache.URL(ctx, "a.mp4"); err != nil || p.calls != 3 {
		t.Errorf("expected presign after Forget, calls = %d", p.calls)
	}
}
