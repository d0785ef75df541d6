package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/storage"
	"github.com/mgpai22/headcut/internal/timeline"
	"github.com/mgpai22/headcut/internal/transcribe"
	"github.com/mgpai22/headcut/internal/translate"
)

const DefaultScenario = "talking_head"

// step of one pipeline run
type Stage string

const (
	StageInit       Stage = "init"
	StageProbing    Stage = "probing_media"
	StageOverlays   Stage = "building_overlays"
	StageSegmenting Stage = "segmenting_speech"
	StageComposing  Stage = "composing_templates"
	StageRendering  Stage = "rendering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// first error of a run, tagged with the stage that raised it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// builds alpha overlays for the given shapes
type OverlayBuilder interface {
	Build(ctx context.Context, headURL string, shapes []overlay.Shape, gate overlay.Gate) (map[overlay.Shape]overlay.Asset, error)
}

// speech intervals of a local media file
type SpeechDetector interface {
	DetectSpeech(ctx context.Context, path string, total float64) ([]audio.Interval, error)
}

// renders one composed spec
type Renderer interface {
	Render(ctx context.Context, spec *timeline.Spec, wait bool) (render.Result, error)
}

// SpeechDetector backed by ffmpeg silencedetect
type SilenceDetector struct {
	Options audio.SilenceOptions
}

func (d SilenceDetector) DetectSpeech(ctx context.Context, path string, total float64) ([]audio.Interval, error) {
	return audio.DetectSpeechSegments(ctx, path, total, d.Options)
}

// talking head coordinator
type Pipeline struct {
	Prober   media.Prober
	Overlays OverlayBuilder
	Speech   SpeechDetector
	Renderer Renderer

	// optional collaborators
	Transcriber transcribe.Transcriber
	Translator  translate.Translator
	Sessions    session.Store
	Objects     storage.Store

	Blocks timeline.Blocks
	HTTP   *http.Client
	// parent of run temp directories, os.TempDir when empty
	TempDir string
	// parent of generated output directories when a run names none
	OutputRoot string
	Logger     *logging.Logger
	now        func() time.Time
}

// one talking head run
type Config struct {
	UserID   int64
	Scenario string

	BackgroundURL string
	HeadURL       string
	Templates     []string

	SubtitleMode  timeline.SubtitleMode
	SubtitlesFile string
	Transcript    string
	SubtitleTheme string
	// writes subtitles.srt and subtitles.vtt next to the specs
	ExportSubtitles bool

	Intro *timeline.Bookend
	Outro *timeline.Bookend

	Circle          session.CircleSettings
	FitTolerance    float64
	BackgroundColor string
	BackgroundMode  timeline.BackgroundMode

	OutputDir string
	// write specs without submitting them
	NoRender bool
}

func (c *Config) defaults() {
	if c.Scenario == "" {
		c.Scenario = DefaultScenario
	}
	if c.SubtitleMode == "" {
		c.SubtitleMode = timeline.SubtitlesAuto
	}
	if c.SubtitleTheme == "" {
		c.SubtitleTheme = render.DefaultTheme
	}
	if c.Circle == (session.CircleSettings{}) {
		c.Circle = session.DefaultCircleSettings()
	}
	if c.FitTolerance <= 0 {
		c.FitTolerance = media.DefaultFitTolerance
	}
	if c.BackgroundMode == "" {
		c.BackgroundMode = timeline.BackgroundAuto
	}
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// per-run scratch directory
func (p *Pipeline) workDir() (string, error) {
	dir := filepath.Join(p.TempDir, "headcut-"+uuid.NewString())
	if p.TempDir == "" {
		dir = filepath.Join(os.TempDir(), "headcut-"+uuid.NewString())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}

func (p *Pipeline) outputDir(explicit, prefix string) (string, error) {
	dir := explicit
	if dir == "" {
		root := p.OutputRoot
		if root == "" {
			root = "build"
		}
		dir = filepath.Join(root, prefix+"_"+p.clock().Format("20060102_150405"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// local copy of src inside dir, src itself when it is already local
func (p *Pipeline) fetch(ctx context.Context, src, dir, name string) (string, error) {
	if !media.IsRemote(src) {
		return src, nil
	}
	dest := filepath.Join(dir, name)
	if err := media.Download(ctx, p.HTTP, src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// fills in the media type of a bookend that does not carry one
func (p *Pipeline) resolveBookend(ctx context.Context, b *timeline.Bookend) *timeline.Bookend {
	if b == nil || b.URL == "" {
		return nil
	}
	out := *b
	if out.Type == "" {
		out.Type = media.SniffType(ctx, p.HTTP, out.URL)
	}
	return &out
}

func gateFor(c session.CircleSettings) overlay.Gate {
	return overlay.Gate{Circle: c.Params(), AutoCenter: c.AutoCenter}
}

func overlayURLs(assets map[overlay.Shape]session.OverlayAsset) map[overlay.Shape]string {
	urls := make(map[overlay.Shape]string, len(assets))
	for shape, a := range assets {
		urls[shape] = a.URL
	}
	return urls
}

func sessionAssets(assets map[overlay.Shape]overlay.Asset) map[overlay.Shape]session.OverlayAsset {
	out := make(map[overlay.Shape]session.OverlayAsset, len(assets))
	for shape, a := range assets {
		out[shape] = session.OverlayAsset{URL: a.URL, Circle: a.Circle}
	}
	return out
}

// copies the rendered video into object storage and returns its key
func (p *Pipeline) archive(ctx context.Context, workDir string, sess *session.Session, template, url string) (string, error) {
	if p.Objects == nil || url == "" {
		return "", nil
	}
	local := filepath.Join(workDir, "result_"+template+".mp4")
	if err := media.Download(ctx, p.HTTP, url, local); err != nil {
		return "", err
	}
	key := fmt.Sprintf("renders/%d/%s/%s.mp4", sess.UserID, sess.ID, template)
	if err := p.Objects.Upload(ctx, key, local); err != nil {
		return "", fmt.Errorf("failed to store render: %w", err)
	}
	return key, nil
}

// records the outcome on the session, detached from ctx so cancelled runs are still persisted
func (p *Pipeline) finish(ctx context.Context, sess *session.Session, runErr error) {
	if p.Sessions == nil || sess == nil || sess.ID == "" {
		return
	}
	if runErr != nil {
		sess.Status = session.StatusFailed
		sess.Error = runErr.Error()
	} else {
		sess.Status = session.StatusDone
		sess.Error = ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.Sessions.Update(ctx, sess); err != nil {
		p.Logger.Or().Warnw("Failed to persist session", "session_id", sess.ID, "error", err)
	}
}
