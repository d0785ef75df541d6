package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mgpai22/headcut/internal/logging"
)

const (
	DefaultHost  = "https://api.shotstack.io"
	DefaultStage = "stage"
)

// render states reported by the API
const (
	StatusQueued    = "queued"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Shotstack edit API client
type Client struct {
	Host         string
	Stage        string
	APIKey       string
	HTTP         *http.Client
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *logging.Logger
}

func NewClient(apiKey, stage string) *Client {
	if stage == "" {
		stage = DefaultStage
	}
	return &Client{
		Host:         DefaultHost,
		Stage:        stage,
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
		PollInterval: 5 * time.Second,
		Timeout:      300 * time.Second,
	}
}

// render state as returned by GET /{stage}/render/{id}
type Status struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	URL        string  `json:"url,omitempty"`
	Poster     string  `json:"poster,omitempty"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	RenderTime float64 `json:"renderTime,omitempty"`
	Billable   float64 `json:"billable,omitempty"`

	raw json.RawMessage
}

// terminal states end polling
func (s *Status) Terminal() bool {
	switch s.Status {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

func (c *Client) renderURL(id string) string {
	base := fmt.Sprintf("%s/%s/render", strings.TrimRight(c.Host, "/"), c.Stage)
	if id == "" {
		return base
	}
	return base + "/" + url.PathEscape(id)
}

// poll URL of a render
func (c *Client) PollURL(id string) string {
	return c.renderURL(id)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if c.APIKey == "" {
		return nil, errors.New("SHOTSTACK_API_KEY must be set")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unexpected response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = string(bytes.TrimSpace(data))
		}
		return nil, fmt.Errorf("request rejected: %s", msg)
	}
	return env.Response, nil
}

// queues a render and returns its id
func (c *Client) Submit(ctx context.Context, payload *Payload) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, c.renderURL(""), payload)
	if err != nil {
		return "", fmt.Errorf("render submission failed: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("unexpected render response: %s", raw)
	}
	return created.ID, nil
}

func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	raw, err := c.do(ctx, http.MethodGet, c.renderURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("render status %s: %w", id, err)
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unexpected status response: %w", err)
	}
	if st.ID == "" {
		st.ID = id
	}
	st.raw = raw
	return &st, nil
}

// polls until the render is terminal. failed and cancelled renders return
// *RenderError, an expired timeout *RenderTimeoutError.
func (c *Client) Wait(ctx context.Context, id string) (*Status, error) {
	log := c.Logger.Or().With("render_id", id)
	deadline := time.Now().Add(c.Timeout)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	last := ""
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Status != last {
			log.Infow("render status", "status", st.Status)
			last = st.Status
		}
		if st.Terminal() {
			if st.Status != StatusDone {
				return st, &RenderError{ID: id, Status: st.Status, Message: st.Error, Response: st.raw}
			}
			return st, nil
		}
		if !time.Now().Before(deadline) {
			return st, &RenderTimeoutError{ID: id, Timeout: c.Timeout}
		}

		select {
		case <-ctx.Done():
			return st, &RenderTimeoutError{ID: id, Timeout: c.Timeout, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
