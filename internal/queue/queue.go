package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"

	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/notify"
	"github.com/mgpai22/headcut/internal/pipeline"
	"github.com/mgpai22/headcut/internal/session"
)

const TypeRerender = "render:rerender"

const rerenderTimeout = 45 * time.Minute

type RerenderPayload struct {
	JobID     string            `json:"job_id"`
	SessionID string            `json:"session_id"`
	ChatID    int64             `json:"chat_id"`
	Overrides session.Overrides `json:"overrides"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// lexically sortable job id
func NewJobID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func NewRerenderTask(p RerenderPayload) (*asynq.Task, error) {
	if p.SessionID == "" {
		return nil, errors.New("rerender task needs a session id")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRerender, b), nil
}

// enqueues rerender jobs
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// enqueues a rerender and returns its job id
func (c *Client) EnqueueRerender(ctx context.Context, p RerenderPayload) (string, error) {
	if p.JobID == "" {
		p.JobID = NewJobID(time.Now())
	}
	task, err := NewRerenderTask(p)
	if err != nil {
		return "", err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(p.JobID),
		asynq.MaxRetry(0),
		asynq.Timeout(rerenderTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue rerender: %w", err)
	}
	return p.JobID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type Rerenderer interface {
	Rerender(ctx context.Context, stored *session.Session, o session.Overrides) (pipeline.RerenderResult, error)
}

// asynq handler running rerender jobs
type Handler struct {
	Sessions session.Store
	Pipeline Rerenderer
	Notifier notify.Notifier
	// download links for archived renders, the render URL is sent without it
	Links  Linker
	Logger *logging.Logger
}

// signed link for a stored object
type Linker interface {
	URL(ctx context.Context, key string) (string, error)
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeRerender, h)
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RerenderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode rerender payload: %v: %w", err, asynq.SkipRetry)
	}
	log := h.Logger.Or().With("job_id", p.JobID, "session_id", p.SessionID)

	stored, err := h.Sessions.Get(ctx, p.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("session %s: %v: %w", p.SessionID, err, asynq.SkipRetry)
		}
		return err
	}

	log.Infow("Rerender started", "templates", stored.Templates)
	res, err := h.Pipeline.Rerender(ctx, stored, p.Overrides)
	if err != nil {
		log.Errorw("Rerender failed", "error", err)
		h.notify(ctx, log, p.ChatID, notify.RenderFailed(err))
		return err
	}

	h.notify(ctx, log, p.ChatID, notify.RenderReady(h.link(ctx, log, res), stored.Merge(p.Overrides).Templates))
	return nil
}

func (h *Handler) link(ctx context.Context, log *logging.Logger, res pipeline.RerenderResult) string {
	if h.Links == nil || res.Key == "" {
		return res.URL
	}
	u, err := h.Links.URL(ctx, res.Key)
	if err != nil {
		log.Warnw("Failed to presign render", "key", res.Key, "error", err)
		return res.URL
	}
	return u
}

func (h *Handler) notify(ctx context.Context, log *logging.Logger, chatID int64, text string) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Notify(context.WithoutCancel(ctx), chatID, text); err != nil {
		log.Warnw("Failed to notify user", "chat_id", chatID, "error", err)
	}
}

func NewServer(redisAddr string, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 1
	}
	return asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency})
}
