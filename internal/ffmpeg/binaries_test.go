package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveEnvOverride(t *testing.T) {
	env := map[string]string{
		envFFmpeg:  "/opt/ffmpeg",
		envFFprobe: "/opt/ffprobe",
	}
	r := resolver{
		getenv:   func(k string) string { return env[k] },
		lookPath: func(string) (string, error) { return "", errors.New("not on PATH") },
		cacheDir: t.TempDir(),
	}
	paths, err := r.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if paths.FFmpeg != "/opt/ffmpeg" || paths.FFprobe != "/opt/ffprobe" {
		t.Errorf("unexpected paths: %+v", paths)
	}
}

func TestResolvePathLookup(t *testing.T) {
	r := resolver{
		getenv:   func(string) string { return "" },
		lookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		cacheDir: t.TempDir(),
	}
	paths, err := r.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if paths.FFmpeg != "/usr/bin/ffmpeg" || paths.FFprobe != "/usr/bin/ffprobe" {
		t.Errorf("unexpected paths: %+v", paths)
	}
}

func TestResolveCachedBinaries(t *testing.T) {
	r := resolver{
		getenv:   func(string) string { return "" },
		lookPath: func(string) (string, error) { return "", errors.New("missing") },
		cacheDir: t.TempDir(),
	}
	dir := r.installDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(dir, name+executableSuffix()), []byte("bin"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := r.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Dir(paths.FFmpeg) != dir {
		t.Errorf("expected cached ffmpeg under %s, got %s", dir, paths.FFmpeg)
	}
}

func TestResolveNoDownload(t *testing.T) {
	r := resolver{
		getenv:   func(string) string { return "" },
		lookPath: func(string) (string, error) { return "", errors.New("missing") },
		cacheDir: t.TempDir(),
	}
	if _, err := r.resolve(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAssetForPlatform(t *testing.T) {
	tests := []struct {
		goos, goarch string
		wantErr      bool
	}{
		{"linux", "amd64", false},
		{"linux", "arm64", false},
		{"darwin", "amd64", false},
		{"windows", "amd64", false},
		{"plan9", "386", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			_, err := assetForPlatform(tt.goos, tt.goarch)
			if (err != nil) != tt.wantErr {
				t.Errorf("assetForPlatform(%s, %s) err = %v, wantErr %v", tt.goos, tt.goarch, err, tt.wantErr)
			}
		})
	}
}
