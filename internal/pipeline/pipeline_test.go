package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/timeline"
)

type fakeProber map[string]media.Meta

func (f fakeProber) Probe(_ context.Context, path string) (media.Meta, error) {
	meta, ok := f[filepath.Base(path)]
	if !ok {
		return media.Meta{}, &media.ProbeError{Path: path, Err: errors.New("unreadable")}
	}
	return meta, nil
}

type overlayCall struct {
	shapes []overlay.Shape
	gate   overlay.Gate
}

type fakeOverlays struct {
	calls []overlayCall
	// shapes silently left out of the result
	omit overlay.Shape
}

func (f *fakeOverlays) Build(_ context.Context, _ string, shapes []overlay.Shape, gate overlay.Gate) (map[overlay.Shape]overlay.Asset, error) {
	f.calls = append(f.calls, overlayCall{shapes: shapes, gate: gate})
	assets := make(map[overlay.Shape]overlay.Asset)
	for _, s := range shapes {
		if s == f.omit {
			continue
		}
		a := overlay.Asset{URL: fmt.Sprintf("https://cdn.example.com/%d/overlay_%s.mov", len(f.calls), s)}
		if s == overlay.ShapeCircle {
			c := gate.Circle
			a.Circle = &c
		}
		assets[s] = a
	}
	if f.omit != "" {
		assets[overlay.ShapeRect] = overlay.Asset{URL: "https://cdn.example.com/overlay_rect.mov"}
	}
	return assets, nil
}

type fakeSpeech struct {
	intervals []audio.Interval
	calls     int
}

func (f *fakeSpeech) DetectSpeech(context.Context, string, float64) ([]audio.Interval, error) {
	f.calls++
	return f.intervals, nil
}

type fakeRenderer struct {
	base    string
	fail    bool
	submits int
	specs   []*timeline.Spec
}

func (f *fakeRenderer) Render(_ context.Context, spec *timeline.Spec, _ bool) (render.Result, error) {
	f.submits++
	f.specs = append(f.specs, spec)
	id := fmt.Sprintf("render-%d", f.submits)
	if f.fail {
		return render.Result{}, &render.RenderError{ID: id, Status: render.StatusFailed, Message: "asset unreachable"}
	}
	return render.Result{Status: render.StatusDone, ID: id, URL: f.base + "/" + id + ".mp4"}, nil
}

type memSessions struct {
	mu   sync.Mutex
	byID map[string]*session.Session
	seq  int
}

func (m *memSessions) Create(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = make(map[string]*session.Session)
	}
	m.seq++
	s.ID = fmt.Sprintf("sess-%d", m.seq)
	s.CreatedAt = time.Now()
	m.byID[s.ID] = s.Clone()
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memSessions) Update(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		return session.ErrNotFound
	}
	m.byID[s.ID] = s.Clone()
	return nil
}

func (m *memSessions) Latest(context.Context, int64, string) (*session.Session, error) {
	return nil, session.ErrNotFound
}

func (m *memSessions) Close() error { return nil }

type fakeObjects struct {
	uploads map[string]int64
}

func (f *fakeObjects) Upload(_ context.Context, key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if f.uploads == nil {
		f.uploads = make(map[string]int64)
	}
	f.uploads[key] = info.Size()
	return nil
}

func (f *fakeObjects) Download(context.Context, string, string) error { return nil }

func (f *fakeObjects) PresignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://r2.example.com/" + key, nil
}

func (f *fakeObjects) Delete(context.Context, string) error { return nil }

type harness struct {
	pipeline *Pipeline
	overlays *fakeOverlays
	speech   *fakeSpeech
	renderer *fakeRenderer
	sessions *memSessions
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("rendered video bytes"))
	}))
	t.Cleanup(srv.Close)

	h := &harness{
		overlays: &fakeOverlays{},
		speech: &fakeSpeech{intervals: []audio.Interval{
			{Start: 0, Duration: 2.5},
			{Start: 3, Duration: 3},
		}},
		renderer: &fakeRenderer{base: srv.URL},
		sessions: &memSessions{},
		dir:      t.TempDir(),
	}
	h.pipeline = &Pipeline{
		Prober: fakeProber{
			"background.mp4": {Width: 1920, Height: 1080, Duration: 10, Type: media.TypeVideo},
			"head.mp4":       {Width: 1080, Height: 1920, Duration: 6, Type: media.TypeVideo},
		},
		Overlays:   h.overlays,
		Speech:     h.speech,
		Renderer:   h.renderer,
		Sessions:   h.sessions,
		HTTP:       srv.Client(),
		TempDir:    t.TempDir(),
		OutputRoot: t.TempDir(),
	}
	return h
}

func (h *harness) config() Config {
	return Config{
		UserID:        42,
		BackgroundURL: filepath.Join(h.dir, "background.mp4"),
		HeadURL:       filepath.Join(h.dir, "head.mp4"),
		Templates:     []string{"circle"},
		SubtitleMode:  timeline.SubtitlesAuto,
		Transcript:    "Hello there. This is a test of the system.",
		OutputDir:     filepath.Join(h.dir, "out"),
	}
}

func TestRunCircleScenario(t *testing.T) {
	h := newHarness(t)
	cfg := h.config()
	cfg.ExportSubtitles = true

	results, err := h.pipeline.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.overlays.calls) != 1 {
		t.Fatalf("expected one overlay build, got %d", len(h.overlays.calls))
	}
	if shapes := h.overlays.calls[0].shapes; len(shapes) != 1 || shapes[0] != overlay.ShapeCircle {
		t.Errorf("overlay shapes = %v, want [circle]", shapes)
	}

	res, ok := results["circle"]
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	if res.ID != "render-1" || !strings.HasSuffix(res.URL, "/render-1.mp4") {
		t.Errorf("result = %+v", res)
	}
	if h.renderer.submits != 1 {
		t.Errorf("expected 1 render submission, got %d", h.renderer.submits)
	}

	spec := h.renderer.specs[0]
	if len(spec.Subtitles) != 2 {
		t.Fatalf("expected 2 subtitle cues, got %d", len(spec.Subtitles))
	}
	if spec.Subtitles[0].Text != "Hello there." || spec.Subtitles[1].Text != "This is a test of the system." {
		t.Errorf("cues = %+v", spec.Subtitles)
	}
	// 16:9 background is outside the 9:16 band
	if spec.Clips[0].Fit != string(media.FitContain) || spec.Background != timeline.DefaultBackgroundColor {
		t.Errorf("background clip fit = %q, background = %q", spec.Clips[0].Fit, spec.Background)
	}
	if l := spec.Clips[0].Length; l == nil || *l != 6 {
		t.Errorf("background length = %v, want 6", l)
	}
	if !strings.HasSuffix(spec.Overlays[0].Src, "overlay_circle.mov") {
		t.Errorf("overlay src = %q", spec.Overlays[0].Src)
	}

	for _, name := range []string{"talking_head_circle.json", "subtitles.srt", "subtitles.vtt"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	sess, err := h.sessions.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.Status != session.StatusDone || sess.ResultURL != res.URL || sess.RenderIDs["circle"] != "render-1" {
		t.Errorf("session = %+v", sess)
	}
	if len(sess.Subtitles.Cues) != 2 || sess.HeadDuration != 6 || sess.Background.Width != 1920 {
		t.Errorf("session intent not recorded: %+v", sess)
	}
	if a := sess.Overlays[overlay.ShapeCircle]; a.URL == "" || a.Circle == nil {
		t.Errorf("circle overlay asset = %+v", a)
	}
}

func TestRunMissingOverlay(t *testing.T) {
	h := newHarness(t)
	h.overlays.omit = overlay.ShapeCircle

	_, err := h.pipeline.Run(context.Background(), h.config())

	var missing *timeline.MissingOverlayError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingOverlayError, got %v", err)
	}
	if missing.Shape != overlay.ShapeCircle || missing.Template != "circle" {
		t.Errorf("missing = %+v", missing)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageComposing {
		t.Errorf("expected composing stage error, got %v", err)
	}
	if h.renderer.submits != 0 {
		t.Errorf("expected no render submissions, got %d", h.renderer.submits)
	}
	if len(h.sessions.byID) != 0 {
		t.Error("session created for a run that never rendered")
	}
}

func TestRunStageErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*harness, *Config)
		stage Stage
	}{
		{"unknown template", func(_ *harness, c *Config) { c.Templates = []string{"portrait"} }, StageInit},
		{"unknown theme", func(_ *harness, c *Config) { c.SubtitleTheme = "comic" }, StageInit},
		{"invalid circle", func(_ *harness, c *Config) {
			c.Circle = session.CircleSettings{Radius: 0.9, CenterX: 0.5, CenterY: 0.5}
		}, StageInit},
		{"unreadable background", func(_ *harness, c *Config) { c.BackgroundURL = "missing.mp4" }, StageProbing},
		{"still head clip", func(h *harness, c *Config) {
			h.pipeline.Prober.(fakeProber)["head.mp4"] = media.Meta{Width: 1080, Height: 1920, Type: media.TypeImage}
		}, StageProbing},
		{"render failure", func(h *harness, _ *Config) { h.renderer.fail = true }, StageRendering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cfg := h.config()
			tt.edit(h, &cfg)

			_, err := h.pipeline.Run(context.Background(), cfg)
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if stageErr.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", stageErr.Stage, tt.stage)
			}
		})
	}
}

func TestRunRenderFailureMarksSession(t *testing.T) {
	h := newHarness(t)
	h.renderer.fail = true

	_, err := h.pipeline.Run(context.Background(), h.config())
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}

	sess, err := h.sessions.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Status != session.StatusFailed || !strings.Contains(sess.Error, "asset unreachable") {
		t.Errorf("session = %+v", sess)
	}
}

func TestRunNoRender(t *testing.T) {
	h := newHarness(t)
	cfg := h.config()
	cfg.Templates = []string{"basic", "overlay"}
	cfg.SubtitleMode = timeline.SubtitlesNone
	cfg.NoRender = true

	results, err := h.pipeline.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 || h.renderer.submits != 0 {
		t.Errorf("no-render run submitted %d renders", h.renderer.submits)
	}
	if h.speech.calls != 0 {
		t.Error("speech detection ran with subtitles disabled")
	}
	for _, name := range []string{"talking_head_basic.json", "talking_head_overlay.json"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Errorf("missing spec %s: %v", name, err)
		}
	}
}

func TestRerender(t *testing.T) {
	h := newHarness(t)
	objects := &fakeObjects{}
	h.pipeline.Objects = objects
	ctx := context.Background()

	cfg := h.config()
	cfg.Templates = []string{"circle", "overlay"}
	if _, err := h.pipeline.Run(ctx, cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := h.sessions.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	speechCalls := h.speech.calls

	theme := "bold_yellow"
	res, err := h.pipeline.Rerender(ctx, stored, session.Overrides{SubtitleTheme: &theme})
	if err != nil {
		t.Fatalf("Rerender: %v", err)
	}
	if len(res.Rebuilt) != 0 || len(h.overlays.calls) != 1 {
		t.Errorf("theme change rebuilt overlays: %v", res.Rebuilt)
	}
	if h.speech.calls != speechCalls {
		t.Error("rerender ran speech detection again")
	}
	last := h.renderer.specs[len(h.renderer.specs)-1]
	if last.SubtitleTheme != "bold_yellow" || len(last.Subtitles) != 2 {
		t.Errorf("rerendered spec theme = %q, cues = %d", last.SubtitleTheme, len(last.Subtitles))
	}
	if res.Key != "renders/42/sess-1/circle.mp4" || objects.uploads[res.Key] == 0 {
		t.Errorf("render not archived: key %q, uploads %v", res.Key, objects.uploads)
	}

	radius, auto := 0.4, false
	res, err = h.pipeline.Rerender(ctx, stored, session.Overrides{
		Templates: []string{"circle"},
		Circle:    &session.CircleOverride{Radius: &radius, AutoCenter: &auto},
	})
	if err != nil {
		t.Fatalf("Rerender: %v", err)
	}
	if len(res.Rebuilt) != 1 || res.Rebuilt[0] != overlay.ShapeCircle {
		t.Fatalf("rebuilt = %v, want [circle]", res.Rebuilt)
	}
	gate := h.overlays.calls[len(h.overlays.calls)-1].gate
	if gate.AutoCenter || gate.Circle.Radius != 0.4 {
		t.Errorf("gate = %+v", gate)
	}

	sess, _ := h.sessions.Get(ctx, "sess-1")
	if sess.Status != session.StatusDone || sess.Circle.Radius != 0.4 || sess.ResultURL != res.URL {
		t.Errorf("session after rerender = %+v", sess)
	}
	if !strings.HasPrefix(sess.Overlays[overlay.ShapeCircle].URL, "https://cdn.example.com/2/") {
		t.Errorf("circle overlay not replaced: %+v", sess.Overlays[overlay.ShapeCircle])
	}
}

func TestRerenderFailurePersists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.pipeline.Run(ctx, h.config()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := h.sessions.Get(ctx, "sess-1")

	h.renderer.fail = true
	if _, err := h.pipeline.Rerender(ctx, stored, session.Overrides{}); err == nil {
		t.Fatal("expected error")
	}
	sess, _ := h.sessions.Get(ctx, "sess-1")
	if sess.Status != session.StatusFailed || sess.Error == "" {
		t.Errorf("session = %+v", sess)
	}
}

func TestStaleShapes(t *testing.T) {
	stored := &session.Session{
		Templates: []string{"overlay", "circle"},
		Circle:    session.DefaultCircleSettings(),
		Overlays: map[overlay.Shape]session.OverlayAsset{
			overlay.ShapeRect:   {URL: "rect.mov"},
			overlay.ShapeCircle: {URL: "circle.mov"},
		},
	}

	if got := staleShapes(stored, stored.Clone()); len(got) != 0 {
		t.Errorf("unchanged session stale = %v", got)
	}

	moved := stored.Clone()
	moved.Circle.CenterY = 0.4
	if got := staleShapes(stored, moved); len(got) != 1 || got[0] != overlay.ShapeCircle {
		t.Errorf("moved circle stale = %v", got)
	}

	noRect := stored.Clone()
	delete(noRect.Overlays, overlay.ShapeRect)
	if got := staleShapes(stored, noRect); len(got) != 1 || got[0] != overlay.ShapeRect {
		t.Errorf("missing rect stale = %v", got)
	}
}
