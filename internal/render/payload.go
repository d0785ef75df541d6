package render

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/mgpai22/headcut/internal/subtitle"
	"github.com/mgpai22/headcut/internal/timeline"
)

// request body of POST /{stage}/render
type Payload struct {
	Timeline Timeline `json:"timeline"`
	Output   Output   `json:"output"`
	Callback string   `json:"callback,omitempty"`
}

type Timeline struct {
	Tracks     []Track     `json:"tracks"`
	Soundtrack *Soundtrack `json:"soundtrack,omitempty"`
	Background string      `json:"background,omitempty"`
}

type Track struct {
	Clips []Clip `json:"clips"`
}

type Clip struct {
	Asset      Asset                `json:"asset"`
	Start      *float64             `json:"start,omitempty"`
	Length     *float64             `json:"length,omitempty"`
	Fit        string               `json:"fit,omitempty"`
	Position   string               `json:"position,omitempty"`
	Offset     *subtitle.Offset     `json:"offset,omitempty"`
	Scale      *float64             `json:"scale,omitempty"`
	Width      *int                 `json:"width,omitempty"`
	Height     *int                 `json:"height,omitempty"`
	Opacity    *float64             `json:"opacity,omitempty"`
	Transition *timeline.Transition `json:"transition,omitempty"`
}

type Asset struct {
	Type   string   `json:"type"`
	Src    string   `json:"src,omitempty"`
	HTML   string   `json:"html,omitempty"`
	Text   string   `json:"text,omitempty"`
	Trim   *float64 `json:"trim,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Speed  *float64 `json:"speed,omitempty"`
	Width  *int     `json:"width,omitempty"`
}

type Soundtrack struct {
	Src    string  `json:"src"`
	Effect string  `json:"effect"`
	Volume float64 `json:"volume"`
}

type Output struct {
	Format      string  `json:"format"`
	Resolution  string  `json:"resolution"`
	AspectRatio string  `json:"aspectRatio"`
	FPS         float64 `json:"fps"`
}

// default subtitle placement, relative to the bottom edge
var defaultSubtitleOffset = subtitle.Offset{X: 0, Y: -0.26}

// maps a composed spec onto the renderer's edit format. tracks are ordered
// top to bottom: subtitles, overlays, clips.
func BuildPayload(spec *timeline.Spec) (*Payload, error) {
	var tracks []Track

	subs, err := buildSubtitleClips(spec.Subtitles, spec.SubtitleTheme)
	if err != nil {
		return nil, err
	}
	if len(subs) > 0 {
		tracks = append(tracks, Track{Clips: subs})
	}

	overlays, err := buildClips(spec.Overlays)
	if err != nil {
		return nil, fmt.Errorf("overlays: %w", err)
	}
	if len(overlays) > 0 {
		tracks = append(tracks, Track{Clips: overlays})
	}

	clips, err := buildClips(spec.Clips)
	if err != nil {
		return nil, fmt.Errorf("clips: %w", err)
	}
	if len(clips) > 0 {
		tracks = append(tracks, Track{Clips: clips})
	}

	payload := &Payload{
		Timeline: Timeline{Tracks: tracks, Background: spec.Background},
		Output:   buildOutput(spec.Output),
		Callback: spec.CallbackURL,
	}
	if st := spec.Soundtrack; st != nil && st.Src != "" {
		payload.Timeline.Soundtrack = &Soundtrack{Src: st.Src, Effect: st.Effect, Volume: 1}
		if payload.Timeline.Soundtrack.Effect == "" {
			payload.Timeline.Soundtrack.Effect = "fadeInFadeOut"
		}
		if st.Volume != nil {
			payload.Timeline.Soundtrack.Volume = *st.Volume
		}
	}
	return payload, nil
}

func buildClips(entries []timeline.Clip) ([]Clip, error) {
	clips := make([]Clip, 0, len(entries))
	for i, entry := range entries {
		c, err := buildClip(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		clips = append(clips, c)
	}
	return clips, nil
}

func buildClip(c timeline.Clip) (Clip, error) {
	asset := Asset{Type: c.AssetType()}
	switch asset.Type {
	case "video":
		asset.Src = c.Src
		asset.Trim = c.Trim
		asset.Volume = c.Volume
		asset.Speed = c.Speed
	case "image":
		asset.Src = c.Src
	case "audio":
		asset.Src = c.Src
		asset.Volume = c.Volume
	case "html":
		asset.HTML = c.HTML
	case "title":
		asset.Text = c.Text
	default:
		return Clip{}, fmt.Errorf("unsupported asset type: %s", asset.Type)
	}

	return Clip{
		Asset:      asset,
		Start:      c.Start,
		Length:     c.Length,
		Fit:        c.Fit,
		Position:   c.Position,
		Offset:     c.Offset,
		Scale:      c.Scale,
		Width:      c.Width,
		Height:     c.Height,
		Opacity:    c.Opacity,
		Transition: c.Transition,
	}, nil
}

// html clips for the subtitle track; empty and zero-length cues are skipped
func buildSubtitleClips(cues []subtitle.Cue, theme string) ([]Clip, error) {
	style := ThemeStyle(theme)
	var clips []Clip
	for i, cue := range cues {
		if strings.TrimSpace(cue.Text) == "" || cue.Length <= 0 {
			continue
		}
		if cue.Start < 0 {
			return nil, fmt.Errorf("subtitle %d has negative start %v", i, cue.Start)
		}

		text := strings.ReplaceAll(html.EscapeString(cue.Text), "\n", "<br>")
		asset := Asset{
			Type: "html",
			HTML: fmt.Sprintf(`<div style="%s">%s</div>`, style, text),
		}
		if cue.Width != nil && *cue.Width > 0 {
			w := int(math.Round(*cue.Width))
			asset.Width = &w
		}

		position := cue.Position
		if position == "" {
			position = "bottom"
		}
		offset := defaultSubtitleOffset
		if cue.Offset != nil {
			offset = *cue.Offset
		}

		clips = append(clips, Clip{
			Asset:    asset,
			Start:    timeline.Float(cue.Start),
			Length:   timeline.Float(cue.Length),
			Position: position,
			Offset:   &offset,
		})
	}
	return clips, nil
}

func buildOutput(o *timeline.Output) Output {
	out := Output{Format: "mp4", Resolution: "1080", AspectRatio: "16:9", FPS: 25}
	if o == nil {
		return out
	}
	if o.Format != "" {
		out.Format = o.Format
	}
	if o.Resolution != "" {
		out.Resolution = o.Resolution
	}
	if o.AspectRatio != "" {
		out.AspectRatio = o.AspectRatio
	}
	if o.FPS > 0 {
		out.FPS = o.FPS
	}
	return out
}
