package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// bytes read when sniffing an extensionless remote asset
const sniffLimit = 128 * 1024

// http(s) URL rather than a local path
func IsRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// streams url into dest
func Download(ctx context.Context, client *http.Client, rawURL, dest string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AssetDownloadError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	out, err := os.Create(dest)
	if err != nil {
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	if err := out.Close(); err != nil {
		return &AssetDownloadError{URL: rawURL, Err: err}
	}
	return nil
}

// guesses image vs video for a remote asset: extension, then HEAD content
// type, then decoding the first bytes. anything undecidable is video.
func SniffType(ctx context.Context, client *http.Client, rawURL string) Type {
	if client == nil {
		client = http.DefaultClient
	}
	if u, err := url.Parse(rawURL); err == nil {
		if t := TypeFromExtension(path.Base(u.Path)); t != "" {
			return t
		}
	}

	if req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil); err == nil {
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode < 400 {
				if t := typeFromContentType(resp.Header.Get("Content-Type")); t != "" {
					return t
				}
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return TypeVideo
	}
	resp, err := client.Do(req)
	if err != nil {
		return TypeVideo
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return TypeVideo
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffLimit))
	if err != nil || len(head) == 0 {
		return TypeVideo
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(head)); err == nil {
		return TypeImage
	}
	return TypeVideo
}
