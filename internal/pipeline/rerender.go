package pipeline

import (
	"context"
	"os"

	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/render"
	"github.com/mgpai22/headcut/internal/session"
	"github.com/mgpai22/headcut/internal/timeline"
)

type RerenderResult struct {
	SessionID string
	// primary template render
	URL string
	// object storage key of the copied render, empty without storage
	Key     string
	Results map[string]render.Result
	// overlay shapes that had to be rebuilt
	Rebuilt []overlay.Shape
}

// replays a stored session with overrides applied. cues, media metadata and
// overlays are reused; only circle overlays whose gate changed are rebuilt.
func (p *Pipeline) Rerender(ctx context.Context, stored *session.Session, o session.Overrides) (RerenderResult, error) {
	merged := stored.Merge(o)
	log := p.Logger.Or().With("session_id", merged.ID, "user_id", merged.UserID)

	res, err := p.rerender(ctx, stored, merged)
	if err != nil {
		log.Stage(string(StageFailed)).Errorw("Rerender failed", "error", err)
	}
	p.finish(ctx, merged, err)
	if err != nil {
		return RerenderResult{}, err
	}
	log.Stage(string(StageDone)).Infow("Rerender complete", "url", res.URL, "key", res.Key)
	return res, nil
}

func (p *Pipeline) rerender(ctx context.Context, stored, merged *session.Session) (RerenderResult, error) {
	log := p.Logger.Or().With("session_id", merged.ID, "user_id", merged.UserID)

	templates, err := timeline.ValidateTemplates(merged.Templates)
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}
	merged.Templates = templates
	mode, err := timeline.ParseSubtitleMode(string(merged.Subtitles.Mode))
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}
	merged.Subtitles.Mode = mode
	theme := merged.Subtitles.Theme
	if theme == "" {
		theme = render.DefaultTheme
	}
	if err := render.ValidateTheme(theme); err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}
	bgMode, err := timeline.ParseBackgroundMode(merged.BackgroundMode)
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}

	workDir, err := p.workDir()
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}
	defer os.RemoveAll(workDir)
	outDir, err := p.outputDir("", "rerender_"+merged.ID)
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
	}

	merged.Status = session.StatusRendering
	merged.Error = ""
	if p.Sessions != nil {
		if err := p.Sessions.Update(ctx, merged); err != nil {
			return RerenderResult{}, &StageError{Stage: StageInit, Err: err}
		}
	}

	intro := p.resolveBookend(ctx, merged.Intro.Bookend())
	outro := p.resolveBookend(ctx, merged.Outro.Bookend())
	if intro != nil {
		merged.Intro.Type = intro.Type
	}
	if outro != nil {
		merged.Outro.Type = outro.Type
	}

	rebuild := staleShapes(stored, merged)
	if len(rebuild) > 0 {
		olog := log.Stage(string(StageOverlays))
		if !merged.Circle.AutoCenter {
			if err := merged.Circle.Params().Validate(); err != nil {
				return RerenderResult{}, &StageError{Stage: StageOverlays, Err: err}
			}
		}
		olog.Infow("Rebuilding overlays", "shapes", rebuild)
		assets, err := p.Overlays.Build(ctx, merged.HeadURL, rebuild, gateFor(merged.Circle))
		if err != nil {
			return RerenderResult{}, &StageError{Stage: StageOverlays, Err: err}
		}
		if merged.Overlays == nil {
			merged.Overlays = make(map[overlay.Shape]session.OverlayAsset)
		}
		for shape, a := range sessionAssets(assets) {
			merged.Overlays[shape] = a
		}
	}

	tolerance := merged.FitTolerance
	if tolerance <= 0 {
		tolerance = media.DefaultFitTolerance
	}
	fit := media.DecideFit(merged.Background.Width, merged.Background.Height, tolerance)

	clog := log.Stage(string(StageComposing))
	composer := &timeline.Composer{OutputDir: outDir, Blocks: p.Blocks, Logger: clog}
	var specs []*timeline.Result
	for _, name := range templates {
		in := timeline.Input{
			Template:        name,
			HeadURL:         merged.HeadURL,
			HeadDuration:    merged.HeadDuration,
			BackgroundURL:   merged.BackgroundURL,
			Background:      merged.Background,
			Fit:             fit,
			BackgroundMode:  bgMode,
			BackgroundColor: merged.BackgroundColor,
			OverlayURLs:     overlayURLs(merged.Overlays),
			SubtitleMode:    mode,
			SubtitleTheme:   theme,
			Intro:           intro,
			Outro:           outro,
		}
		if mode != timeline.SubtitlesNone && len(merged.Subtitles.Cues) > 0 {
			in.FileCues = merged.Subtitles.Cues
		}
		spec, err := composer.Compose(in)
		if err != nil {
			return RerenderResult{}, &StageError{Stage: StageComposing, Err: err}
		}
		specs = append(specs, spec)
	}

	results, err := p.renderSpecs(ctx, log.Stage(string(StageRendering)), specs)
	if err != nil {
		return RerenderResult{}, &StageError{Stage: StageRendering, Err: err}
	}
	if err := p.recordResults(ctx, workDir, merged, templates, results); err != nil {
		return RerenderResult{}, &StageError{Stage: StageRendering, Err: err}
	}

	return RerenderResult{
		SessionID: merged.ID,
		URL:       merged.ResultURL,
		Key:       merged.ResultKey,
		Results:   results,
		Rebuilt:   rebuild,
	}, nil
}

// shapes the merged templates need that have no stored overlay, plus the
// circle when its gate settings changed
func staleShapes(stored, merged *session.Session) []overlay.Shape {
	var stale []overlay.Shape
	for _, shape := range timeline.RequiredShapes(merged.Templates) {
		asset, ok := merged.Overlays[shape]
		switch {
		case !ok || asset.URL == "":
			stale = append(stale, shape)
		case shape == overlay.ShapeCircle && merged.Circle != stored.Circle:
			stale = append(stale, shape)
		}
	}
	return stale
}
