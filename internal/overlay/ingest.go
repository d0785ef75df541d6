package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/headcut/internal/logging"
)

const DefaultIngestHost = "https://api.shotstack.io"

// renderer ingest API: signed upload, public URL derivation, readiness poll
type IngestClient struct {
	Host         string
	Stage        string
	APIKey       string
	HTTP         *http.Client
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *logging.Logger
}

func NewIngestClient(apiKey, stage string) *IngestClient {
	return &IngestClient{
		Host:         DefaultIngestHost,
		Stage:        stage,
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 5 * time.Minute},
		PollInterval: 5 * time.Second,
		Timeout:      300 * time.Second,
	}
}

type signedUploadResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

// uploads a local file and waits until its public URL answers 200.
// a cancelled upload is deleted on a best-effort basis.
func (c *IngestClient) Upload(ctx context.Context, path string) (string, error) {
	log := c.Logger.Or()

	id, signedURL, err := c.RequestUpload(ctx)
	if err != nil {
		return "", &AssetUploadError{Path: path, Err: err}
	}
	log.Debugw("ingest upload requested", "id", id)

	cleanup := func() {
		if ctx.Err() == nil {
			return
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.DeleteSource(dctx, id); err != nil {
			log.Warnw("failed to delete cancelled ingest source", "id", id, "error", err)
		}
	}

	if err := c.Put(ctx, signedURL, path); err != nil {
		cleanup()
		return "", &AssetUploadError{Path: path, Err: err}
	}

	publicURL, err := PublicURL(signedURL, filepath.Ext(path))
	if err != nil {
		return "", &AssetUploadError{Path: path, Err: err}
	}

	if err := c.WaitReady(ctx, publicURL); err != nil {
		cleanup()
		return "", err
	}
	log.Infow("overlay asset ready", "url", publicURL)
	return publicURL, nil
}

// asks the ingest API for a signed upload URL
func (c *IngestClient) RequestUpload(ctx context.Context) (string, string, error) {
	endpoint := fmt.Sprintf("%s/ingest/%s/upload", strings.TrimRight(c.Host, "/"), c.Stage)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("signed upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("signed upload request returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var parsed signedUploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("failed to parse signed upload response: %w", err)
	}
	if parsed.Data.ID == "" || parsed.Data.Attributes.URL == "" {
		return "", "", errors.New("signed upload response missing id or url")
	}
	return parsed.Data.ID, parsed.Data.Attributes.URL, nil
}

// streams the file to the signed URL
func (c *IngestClient) Put(ctx context.Context, signedURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// polls HEAD on the public URL until it answers 200
func (c *IngestClient) WaitReady(ctx context.Context, publicURL string) error {
	deadline := time.Now().Add(c.Timeout)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		if c.head(ctx, publicURL) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &AssetNotReadyError{URL: publicURL, Timeout: c.Timeout}
		}
		select {
		case <-ctx.Done():
			return &AssetNotReadyError{URL: publicURL, Timeout: c.Timeout, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *IngestClient) head(ctx context.Context, u string) bool {
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(hctx, http.MethodHead, u, nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// removes an ingested source
func (c *IngestClient) DeleteSource(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/ingest/%s/sources/%s", strings.TrimRight(c.Host, "/"), c.Stage, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete returned %s", resp.Status)
	}
	return nil
}

// public asset URL for a signed upload URL: {owner}/{upload}/source{ext}
func PublicURL(signedURL, ext string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", fmt.Errorf("invalid signed URL: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return "", fmt.Errorf("unexpected signed URL structure: %s", signedURL)
	}
	return fmt.Sprintf("%s://%s/%s/%s/source%s", u.Scheme, u.Host, segments[0], segments[1], ext), nil
}
