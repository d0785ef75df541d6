package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mgpai22/headcut/internal/pipeline"
	"github.com/mgpai22/headcut/internal/session"
)

type fakeStore struct {
	sessions map[string]*session.Session
}

func (f *fakeStore) Create(context.Context, *session.Session) error { return nil }

func (f *fakeStore) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.Clone(), nil
}

func (f *fakeStore) Update(context.Context, *session.Session) error { return nil }

func (f *fakeStore) Latest(context.Context, int64, string) (*session.Session, error) {
	return nil, session.ErrNotFound
}

func (f *fakeStore) Close() error { return nil }

type fakeRerenderer struct {
	err       error
	key       string
	overrides []session.Overrides
}

func (f *fakeRerenderer) Rerender(_ context.Context, s *session.Session, o session.Overrides) (pipeline.RerenderResult, error) {
	f.overrides = append(f.overrides, o)
	if f.err != nil {
		return pipeline.RerenderResult{}, f.err
	}
	return pipeline.RerenderResult{SessionID: s.ID, URL: "https://cdn.example.com/final.mp4", Key: f.key}, nil
}

type fakeLinker struct {
	err error
}

func (f fakeLinker) URL(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://r2.example.com/" + key + "?X-Amz-Signature=abc", nil
}

type message struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	sent []message
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, message{chatID, text})
	return nil
}

func newHandler(r *fakeRerenderer, n *fakeNotifier) *Handler {
	return &Handler{
		Sessions: &fakeStore{sessions: map[string]*session.Session{
			"sess-1": {ID: "sess-1", UserID: 42, Templates: []string{"circle"}},
		}},
		Pipeline: r,
		Notifier: n,
	}
}

func TestHandlerRerender(t *testing.T) {
	r := &fakeRerenderer{}
	n := &fakeNotifier{}
	h := newHandler(r, n)

	theme := "plain"
	task, err := NewRerenderTask(RerenderPayload{
		JobID:     "job-1",
		SessionID: "sess-1",
		ChatID:    99,
		Overrides: session.Overrides{SubtitleTheme: &theme},
	})
	if err != nil {
		t.Fatalf("NewRerenderTask: %v", err)
	}
	if task.Type() != TypeRerender {
		t.Errorf("task type = %q", task.Type())
	}

	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(r.overrides) != 1 || r.overrides[0].SubtitleTheme == nil || *r.overrides[0].SubtitleTheme != "plain" {
		t.Errorf("overrides = %+v", r.overrides)
	}
	if len(n.sent) != 1 || n.sent[0].chatID != 99 || !strings.Contains(n.sent[0].text, "final.mp4") {
		t.Errorf("notifications = %+v", n.sent)
	}
}

func TestHandlerLinks(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		linker Linker
		want   string
	}{
		{"presigned", "renders/42/sess-1/circle.mp4", fakeLinker{}, "r2.example.com/renders/42/sess-1/circle.mp4"},
		{"no key", "", fakeLinker{}, "cdn.example.com/final.mp4"},
		{"presign error", "renders/42/sess-1/circle.mp4", fakeLinker{err: errors.New("denied")}, "cdn.example.com/final.mp4"},
		{"no linker", "renders/42/sess-1/circle.mp4", nil, "cdn.example.com/final.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			h := newHandler(&fakeRerenderer{key: tt.key}, n)
			h.Links = tt.linker

			task, err := NewRerenderTask(RerenderPayload{SessionID: "sess-1", ChatID: 7})
			if err != nil {
				t.Fatal(err)
			}
			if err := h.ProcessTask(context.Background(), task); err != nil {
				t.Fatalf("ProcessTask: %v", err)
			}
			if len(n.sent) != 1 || !strings.Contains(n.sent[0].text, tt.want) {
				t.Errorf("notifications = %+v, want link containing %q", n.sent, tt.want)
			}
		})
	}
}

func TestHandlerFailures(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		renderErr error
		skipRetry bool
		notified  bool
	}{
		{"bad payload", []byte("{"), nil, true, false},
		{"unknown session", mustJSON(t, RerenderPayload{SessionID: "nope", ChatID: 99}), nil, true, false},
		{"render failure", mustJSON(t, RerenderPayload{SessionID: "sess-1", ChatID: 99}), errors.New("render timed out"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			h := newHandler(&fakeRerenderer{err: tt.renderErr}, n)

			err := h.ProcessTask(context.Background(), asynq.NewTask(TypeRerender, tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, asynq.SkipRetry); got != tt.skipRetry {
				t.Errorf("SkipRetry = %v, want %v (%v)", got, tt.skipRetry, err)
			}
			if got := len(n.sent) > 0; got != tt.notified {
				t.Errorf("notified = %v, want %v", got, tt.notified)
			}
		})
	}
}

func TestNewRerenderTaskNeedsSession(t *testing.T) {
	if _, err := NewRerenderTask(RerenderPayload{}); err == nil {
		t.Error("expected error for missing session id")
	}
}

func TestNewJobIDSortable(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := NewJobID(at)
	b := NewJobID(at)
	c := NewJobID(at.Add(time.Second))
	if len(a) != 26 {
		t.Errorf("job id %q has length %d", a, len(a))
	}
	if !(a < b && b < c) {
		t.Errorf("ids not increasing: %s %s %s", a, b, c)
	}
}

// only runs if REDIS_ADDR is set
func TestEnqueueRerenderIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	c := NewClient(addr)
	defer c.Close()

	id, err := c.EnqueueRerender(context.Background(), RerenderPayload{SessionID: "sess-integration"})
	if err != nil {
		t.Fatalf("EnqueueRerender: %v", err)
	}
	if id == "" {
		t.Error("empty job id")
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
