package timeline

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/subtitle"
)

const DefaultBackgroundColor = "#000000"

// where subtitle cues come from
type SubtitleMode string

const (
	SubtitlesNone   SubtitleMode = "none"
	SubtitlesManual SubtitleMode = "manual"
	SubtitlesAuto   SubtitleMode = "auto"
)

func ParseSubtitleMode(s string) (SubtitleMode, error) {
	switch m := SubtitleMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SubtitlesNone, SubtitlesManual, SubtitlesAuto:
		return m, nil
	case "":
		return SubtitlesAuto, nil
	default:
		return "", fmt.Errorf("unsupported subtitle mode: %q", s)
	}
}

// how a video background is timed
type BackgroundMode string

const (
	// stretched to the content through auto-length
	BackgroundAuto BackgroundMode = "auto"
	// played once at its own duration
	BackgroundFixed BackgroundMode = "fixed"
)

func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch m := BackgroundMode(strings.ToLower(strings.TrimSpace(s))); m {
	case BackgroundAuto, BackgroundFixed:
		return m, nil
	case "":
		return BackgroundAuto, nil
	default:
		return "", fmt.Errorf("unsupported background mode: %q", s)
	}
}

// intro or outro clip and the templates it applies to (all when empty)
type Bookend struct {
	URL       string     `json:"url" yaml:"url"`
	Type      media.Type `json:"type" yaml:"type"`
	Length    float64    `json:"length" yaml:"length"`
	Templates []string   `json:"templates,omitempty" yaml:"templates,omitempty"`
}

func (b *Bookend) Applies(template string) bool {
	if b == nil || b.URL == "" {
		return false
	}
	if len(b.Templates) == 0 {
		return true
	}
	for _, t := range b.Templates {
		if t == template {
			return true
		}
	}
	return false
}

func (b *Bookend) Clip() Clip {
	return Clip{
		Type:       string(b.Type),
		Src:        b.URL,
		Length:     Float(math.Max(b.Length, 0.1)),
		Fit:        string(media.FitContain),
		Transition: &Transition{In: "fade"},
	}
}

// everything one template needs to be filled in
type Input struct {
	Template       string
	HeadURL        string
	HeadDuration   float64
	BackgroundURL  string
	Background     media.Meta
	Fit            media.Fit
	BackgroundMode BackgroundMode
	// used with fit contain, DefaultBackgroundColor when empty
	BackgroundColor string
	OverlayURLs     map[overlay.Shape]string
	SubtitleMode    SubtitleMode
	// nil when no subtitles file was loaded
	FileCues      []subtitle.Cue
	AutoCues      []subtitle.Cue
	HasTranscript bool
	SubtitleTheme string
	Intro         *Bookend
	Outro         *Bookend
}

type Result struct {
	Template string
	Path     string
	Spec     *Spec
	// content end before blocks were applied
	End float64
}

// a template needs an overlay shape that was not built
type MissingOverlayError struct {
	Template string
	Shape    overlay.Shape
}

func (e *MissingOverlayError) Error() string {
	return fmt.Sprintf("template %s needs a %s overlay but no URL was produced", e.Template, e.Shape)
}

// fills presets with sources, timing and blocks and writes them out
type Composer struct {
	OutputDir string
	Blocks    Blocks
	Logger    *logging.Logger
}

func (c *Composer) Compose(in Input) (*Result, error) {
	log := c.Logger.Or().With("template", in.Template)

	tmpl, err := Lookup(in.Template)
	if err != nil {
		return nil, err
	}
	spec, err := tmpl.Load()
	if err != nil {
		return nil, err
	}

	var maxEnd float64

	if len(tmpl.HeadNodes) > 0 {
		if err := UpdateNodes(spec, tmpl.HeadNodes, NodeUpdate{URL: in.HeadURL}); err != nil {
			return nil, err
		}
		heads, err := spec.Nodes(tmpl.HeadNodes)
		if err != nil {
			return nil, err
		}
		if end := TrackEnd(heads, in.HeadDuration); end > 0 {
			maxEnd = math.Max(maxEnd, end)
		}
	}

	if len(tmpl.BackgroundNodes) > 0 {
		update := NodeUpdate{URL: in.BackgroundURL, Fit: in.Fit, Type: in.Background.Type}
		if err := UpdateNodes(spec, tmpl.BackgroundNodes, update); err != nil {
			return nil, err
		}

		target := maxEnd
		if target <= 0 {
			target = in.HeadDuration
		}
		if in.Background.Type == media.TypeVideo && in.BackgroundMode == BackgroundFixed {
			for _, p := range tmpl.BackgroundNodes {
				node, err := spec.Node(p)
				if err != nil {
					return nil, err
				}
				playable := math.Max(in.Background.Duration-node.TrimAt(), 0)
				node.AutoLength = false
				node.MatchLengthTo = ""
				node.Speed = nil
				node.Length = Float(subtitle.Round3(math.Max(playable, 0.1)))
				target = math.Max(target, node.StartAt()+playable)
			}
		}

		backgrounds, err := spec.Nodes(tmpl.BackgroundNodes)
		if err != nil {
			return nil, err
		}
		if end := TrackEnd(backgrounds, target); end > 0 {
			maxEnd = math.Max(maxEnd, end)
		}
	}

	for _, shape := range tmpl.shapes() {
		url := in.OverlayURLs[shape]
		if url == "" {
			return nil, &MissingOverlayError{Template: in.Template, Shape: shape}
		}
		if err := UpdateNodes(spec, tmpl.OverlayNodes[shape], NodeUpdate{URL: url, Fit: media.FitContain}); err != nil {
			return nil, err
		}
	}

	if in.Fit == media.FitContain {
		spec.Background = in.BackgroundColor
		if spec.Background == "" {
			spec.Background = DefaultBackgroundColor
		}
	}

	switch in.SubtitleMode {
	case SubtitlesNone:
		spec.Subtitles = nil
	case SubtitlesManual:
		spec.Subtitles = copyCues(in.FileCues)
	default:
		if in.FileCues != nil {
			spec.Subtitles = copyCues(in.FileCues)
		} else if in.HasTranscript {
			spec.Subtitles = copyCues(in.AutoCues)
		}
	}

	if maxEnd <= 0 {
		maxEnd = in.HeadDuration
	}
	actual := math.Max(TrackEnd(spec.Clips, maxEnd), TrackEnd(spec.Overlays, maxEnd))
	actual = math.Max(actual, SubtitlesEnd(spec.Subtitles))
	if actual > 0 {
		maxEnd = math.Max(maxEnd, actual)
	}
	LockAutoLength(spec.Clips, maxEnd)
	LockAutoLength(spec.Overlays, maxEnd)

	// clips and seconds spliced in front of the content
	var prepended int
	var lead float64
	if block, ok := c.Blocks[in.Template]; ok {
		n, err := ApplyBlocks(spec, block, maxEnd)
		if err != nil {
			return nil, fmt.Errorf("template %s blocks: %w", in.Template, err)
		}
		prepended += n
		lead += block.PrependLength()
	}

	var bookends Block
	if in.Intro.Applies(in.Template) {
		bookends.PrependClips = append(bookends.PrependClips, in.Intro.Clip())
	}
	if in.Outro.Applies(in.Template) {
		bookends.AppendClips = append(bookends.AppendClips, in.Outro.Clip())
	}
	n, err := ApplyBlocks(spec, bookends, maxEnd)
	if err != nil {
		return nil, err
	}
	prepended += n
	lead += bookends.PrependLength()

	spec.SubtitleTheme = in.SubtitleTheme

	if len(tmpl.BackgroundNodes) > 0 && in.Background.Type == media.TypeImage {
		mainEnd := lead + math.Max(in.HeadDuration, 0.1)
		for _, p := range tmpl.BackgroundNodes {
			if p.Track == TrackClips {
				p.Index += prepended
			}
			node, err := spec.Node(p)
			if err != nil {
				return nil, err
			}
			start := node.StartAt()
			end := mainEnd
			if start >= mainEnd {
				end = start
			}
			node.Length = Float(subtitle.Round3(math.Max(end-start, 0.1)))
		}
	}

	path := filepath.Join(c.OutputDir, tmpl.File)
	if err := spec.Save(path); err != nil {
		return nil, err
	}
	log.Infow("spec written", "path", path, "end", subtitle.Round3(maxEnd), "subtitles", len(spec.Subtitles))

	return &Result{Template: in.Template, Path: path, Spec: spec, End: maxEnd}, nil
}

func copyCues(cues []subtitle.Cue) []subtitle.Cue {
	if cues == nil {
		return nil
	}
	return append([]subtitle.Cue{}, cues...)
}
