package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/subtitle"
	"github.com/mgpai22/headcut/internal/timeline"
	"github.com/mgpai22/headcut/internal/transcribe"
	"github.com/mgpai22/headcut/internal/translate"
)

// sentences per cue above which alignment is likely to drift
const driftSentences = 3

// state shared between the stages of one run
type run struct {
	cfg     Config
	log     *logging.Logger
	workDir string
	outDir  string

	headPath     string
	headDuration float64
	background   media.Meta
	fit          media.Fit
	intro        *timeline.Bookend
	outro        *timeline.Bookend

	overlays map[overlay.Shape]overlay.Asset
	fileCues []subtitle.Cue
	autoCues []subtitle.Cue
	hasText  bool

	specs []*timeline.Result
}

// probes the sources, builds overlays, aligns subtitles, composes every
// template and renders them in order. the first failing stage fails the run.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (map[string]render.Result, error) {
	cfg.defaults()
	log := p.Logger.Or().With("scenario", cfg.Scenario, "user_id", cfg.UserID)

	templates, err := timeline.ValidateTemplates(cfg.Templates)
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	cfg.Templates = templates
	if err := p.validate(cfg); err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}

	workDir, err := p.workDir()
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	defer os.RemoveAll(workDir)

	outDir, err := p.outputDir(cfg.OutputDir, "auto")
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	log.Infow("Starting talking head run", "templates", templates, "output_dir", outDir)

	r := &run{cfg: cfg, log: log, workDir: workDir, outDir: outDir}

	steps := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageProbing, p.probe},
		{StageOverlays, p.buildOverlays},
		{StageSegmenting, p.segment},
		{StageComposing, p.compose},
	}
	for _, step := range steps {
		if err := step.fn(ctx, r); err != nil {
			log.Stage(string(StageFailed)).Errorw("Run failed", "failed_stage", step.stage, "error", err)
			return nil, &StageError{Stage: step.stage, Err: err}
		}
	}

	if cfg.NoRender {
		log.Stage(string(StageDone)).Infow("Rendering disabled, specs are ready", "output_dir", outDir)
		return map[string]render.Result{}, nil
	}

	results, err := p.renderAll(ctx, r)
	if err != nil {
		log.Stage(string(StageFailed)).Errorw("Run failed", "failed_stage", StageRendering, "error", err)
		return nil, &StageError{Stage: StageRendering, Err: err}
	}
	log.Stage(string(StageDone)).Infow("Run complete", "renders", len(results))
	return results, nil
}

func (p *Pipeline) validate(cfg Config) error {
	if cfg.HeadURL == "" {
		return errors.New("head clip URL is required")
	}
	if cfg.BackgroundURL == "" {
		return errors.New("background URL is required")
	}
	if err := render.ValidateTheme(cfg.SubtitleTheme); err != nil {
		return err
	}
	if cfg.SubtitleMode == timeline.SubtitlesManual && cfg.SubtitlesFile == "" {
		return errors.New("manual subtitle mode needs a subtitles file")
	}
	if !cfg.Circle.AutoCenter {
		for _, shape := range timeline.RequiredShapes(cfg.Templates) {
			if shape == overlay.ShapeCircle {
				if err := cfg.Circle.Params().Validate(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *Pipeline) probe(ctx context.Context, r *run) error {
	log := r.log.Stage(string(StageProbing))

	bgPath, err := p.fetch(ctx, r.cfg.BackgroundURL, r.workDir, "background_source")
	if err != nil {
		return err
	}
	bg, err := p.Prober.Probe(ctx, bgPath)
	if err != nil {
		return err
	}
	r.background = bg
	r.fit = media.DecideFit(bg.Width, bg.Height, r.cfg.FitTolerance)
	log.Infow("Background probed",
		"width", bg.Width,
		"height", bg.Height,
		"aspect", bg.AspectRatio(),
		"type", bg.Type,
		"duration", bg.Duration,
		"fit", r.fit,
	)

	headPath, err := p.fetch(ctx, r.cfg.HeadURL, r.workDir, "head_source")
	if err != nil {
		return err
	}
	head, err := p.Prober.Probe(ctx, headPath)
	if err != nil {
		return err
	}
	if head.Type != media.TypeVideo {
		return fmt.Errorf("head clip %s must be a video", r.cfg.HeadURL)
	}
	r.headPath = headPath
	r.headDuration = head.Duration
	log.Infow("Head clip probed", "width", head.Width, "height", head.Height, "duration", head.Duration)

	r.intro = p.resolveBookend(ctx, r.cfg.Intro)
	r.outro = p.resolveBookend(ctx, r.cfg.Outro)
	return nil
}

func (p *Pipeline) buildOverlays(ctx context.Context, r *run) error {
	shapes := timeline.RequiredShapes(r.cfg.Templates)
	if len(shapes) == 0 {
		r.overlays = map[overlay.Shape]overlay.Asset{}
		return nil
	}
	log := r.log.Stage(string(StageOverlays))
	log.Infow("Building overlays", "shapes", shapes)

	assets, err := p.Overlays.Build(ctx, r.cfg.HeadURL, shapes, gateFor(r.cfg.Circle))
	if err != nil {
		return err
	}
	for shape, a := range assets {
		log.Infow("Overlay ready", "shape", shape, "url", a.URL)
	}
	r.overlays = assets
	return nil
}

func (p *Pipeline) segment(ctx context.Context, r *run) error {
	log := r.log.Stage(string(StageSegmenting))

	if r.cfg.SubtitleMode == timeline.SubtitlesNone {
		return nil
	}
	if r.cfg.SubtitlesFile != "" {
		cues, err := subtitle.LoadFile(r.cfg.SubtitlesFile)
		if err != nil {
			return err
		}
		if cues == nil {
			cues = []subtitle.Cue{}
		}
		log.Infow("Subtitles loaded", "file", r.cfg.SubtitlesFile, "cues", len(cues))
		r.fileCues = cues
	}

	if r.cfg.SubtitleMode == timeline.SubtitlesAuto && r.fileCues == nil {
		text := r.cfg.Transcript
		if text == "" && p.Transcriber != nil {
			log.Infow("Transcribing head clip")
			result, err := transcribe.Media(ctx, p.Transcriber, r.headPath, r.workDir)
			if err != nil {
				return fmt.Errorf("transcription failed: %w", err)
			}
			text = result.Text
		}

		if text != "" {
			intervals, err := p.Speech.DetectSpeech(ctx, r.headPath, r.headDuration)
			if err != nil {
				return err
			}
			r.autoCues = subtitle.AlignTranscript(text, intervals, r.headDuration)
			r.hasText = true
			log.Infow("Subtitles aligned", "intervals", len(intervals), "cues", len(r.autoCues))
			warnDrift(log, r.autoCues)
		}
	}

	if p.Translator != nil {
		var err error
		if r.fileCues, err = translateCues(ctx, p.Translator, r.fileCues); err != nil {
			return err
		}
		if r.autoCues, err = translateCues(ctx, p.Translator, r.autoCues); err != nil {
			return err
		}
	}
	return nil
}

func translateCues(ctx context.Context, tr translate.Translator, cues []subtitle.Cue) ([]subtitle.Cue, error) {
	if len(cues) == 0 {
		return cues, nil
	}
	out, err := translate.Cues(ctx, tr, cues)
	if err != nil {
		return nil, fmt.Errorf("subtitle translation failed: %w", err)
	}
	return out, nil
}

// cues carrying many sentences mean too few speech intervals were found
func warnDrift(log *logging.Logger, cues []subtitle.Cue) {
	for i, c := range cues {
		if n := len(subtitle.SentenceTokenize(c.Text)); n > driftSentences {
			log.Warnw("Cue spans several sentences, timing may drift", "cue", i, "sentences", n, "start", c.Start)
		}
	}
}

// cues that end up in the specs, stored on the session for rerenders
func (r *run) cues() []subtitle.Cue {
	switch {
	case r.cfg.SubtitleMode == timeline.SubtitlesNone:
		return nil
	case r.fileCues != nil:
		return r.fileCues
	case r.cfg.SubtitleMode == timeline.SubtitlesAuto && r.hasText:
		return r.autoCues
	}
	return nil
}

func (p *Pipeline) compose(ctx context.Context, r *run) error {
	log := r.log.Stage(string(StageComposing))
	composer := &timeline.Composer{OutputDir: r.outDir, Blocks: p.Blocks, Logger: log}

	urls := make(map[overlay.Shape]string, len(r.overlays))
	for shape, a := range r.overlays {
		urls[shape] = a.URL
	}

	for _, name := range r.cfg.Templates {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := composer.Compose(timeline.Input{
			Template:        name,
			HeadURL:         r.cfg.HeadURL,
			HeadDuration:    r.headDuration,
			BackgroundURL:   r.cfg.BackgroundURL,
			Background:      r.background,
			Fit:             r.fit,
			BackgroundMode:  r.cfg.BackgroundMode,
			BackgroundColor: r.cfg.BackgroundColor,
			OverlayURLs:     urls,
			SubtitleMode:    r.cfg.SubtitleMode,
			FileCues:        r.fileCues,
			AutoCues:        r.autoCues,
			HasTranscript:   r.hasText,
			SubtitleTheme:   r.cfg.SubtitleTheme,
			Intro:           r.intro,
			Outro:           r.outro,
		})
		if err != nil {
			return err
		}
		r.specs = append(r.specs, res)
	}

	if cues := r.cues(); r.cfg.ExportSubtitles && len(cues) > 0 {
		for _, name := range []string{"subtitles.srt", "subtitles.vtt"} {
			if err := subtitle.Write(filepath.Join(r.outDir, name), cues); err != nil {
				return err
			}
		}
		log.Infow("Subtitles exported", "output_dir", r.outDir)
	}
	return nil
}

func (p *Pipeline) newSession(r *run) *session.Session {
	sess := &session.Session{
		UserID:          r.cfg.UserID,
		Scenario:        r.cfg.Scenario,
		HeadURL:         r.cfg.HeadURL,
		BackgroundURL:   r.cfg.BackgroundURL,
		Templates:       append([]string(nil), r.cfg.Templates...),
		Subtitles:       session.SubtitleSettings{Mode: r.cfg.SubtitleMode, Theme: r.cfg.SubtitleTheme, Cues: r.cues()},
		Circle:          r.cfg.Circle,
		FitTolerance:    r.cfg.FitTolerance,
		BackgroundColor: r.cfg.BackgroundColor,
		BackgroundMode:  string(r.cfg.BackgroundMode),
		Background:      r.background,
		HeadDuration:    r.headDuration,
		Overlays:        sessionAssets(r.overlays),
		Status:          session.StatusRendering,
	}
	sess.Intro = bookendSettings(r.intro)
	sess.Outro = bookendSettings(r.outro)
	return sess
}

func bookendSettings(b *timeline.Bookend) session.BookendSettings {
	if b == nil {
		return session.BookendSettings{}
	}
	return session.BookendSettings{
		Enabled:   true,
		URL:       b.URL,
		Type:      b.Type,
		Length:    b.Length,
		Templates: append([]string(nil), b.Templates...),
	}
}

func (p *Pipeline) renderAll(ctx context.Context, r *run) (map[string]render.Result, error) {
	log := r.log.Stage(string(StageRendering))

	var sess *session.Session
	if p.Sessions != nil {
		sess = p.newSession(r)
		if err := p.Sessions.Create(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		log = log.With("session_id", sess.ID)
	}

	results, err := p.renderSpecs(ctx, log, r.specs)
	if err == nil && sess != nil {
		err = p.recordResults(ctx, r.workDir, sess, r.cfg.Templates, results)
	}
	p.finish(ctx, sess, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// submits specs one after another and waits for each
func (p *Pipeline) renderSpecs(ctx context.Context, log *logging.Logger, specs []*timeline.Result) (map[string]render.Result, error) {
	results := make(map[string]render.Result, len(specs))
	for _, spec := range specs {
		log.Infow("Rendering", "template", spec.Template, "spec", spec.Path)
		res, err := p.Renderer.Render(ctx, spec.Spec, true)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", spec.Template, err)
		}
		log.Infow("Rendered", "template", spec.Template, "render_id", res.ID, "url", res.URL)
		results[spec.Template] = res
	}
	return results, nil
}

// stores render ids and the primary result on the session
func (p *Pipeline) recordResults(ctx context.Context, workDir string, sess *session.Session, templates []string, results map[string]render.Result) error {
	sess.RenderIDs = make(map[string]string, len(results))
	for name, res := range results {
		sess.RenderIDs[name] = res.ID
	}
	primary := results[templates[0]]
	sess.ResultURL = primary.URL

	key, err := p.archive(ctx, workDir, sess, templates[0], primary.URL)
	if err != nil {
		return err
	}
	sess.ResultKey = key
	return nil
}
