package timeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/subtitle"
)

const (
	headURL       = "https://cdn.example.com/head.mp4"
	backgroundURL = "https://cdn.example.com/background.mp4"
	rectURL       = "https://cdn.example.com/owner/a/source.mov"
	circleURL     = "https://cdn.example.com/owner/b/source.mov"
)

func newComposer(t *testing.T) *Composer {
	return &Composer{OutputDir: t.TempDir(), Logger: logging.Nop()}
}

func videoInput(template string) Input {
	return Input{
		Template:      template,
		HeadURL:       headURL,
		HeadDuration:  12.5,
		BackgroundURL: backgroundURL,
		Background:    media.Meta{Width: 1080, Height: 1920, Duration: 30, Type: media.TypeVideo},
		Fit:           media.FitCover,
		OverlayURLs:   map[overlay.Shape]string{overlay.ShapeRect: rectURL, overlay.ShapeCircle: circleURL},
		SubtitleMode:  SubtitlesAuto,
		SubtitleTheme: "boxed",
	}
}

func TestRegistryPresetsResolve(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tmpl, err := Lookup(name)
			if err != nil {
				t.Fatal(err)
			}
			spec, err := tmpl.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			paths := append(append([]NodePath{}, tmpl.HeadNodes...), tmpl.BackgroundNodes...)
			for _, p := range tmpl.OverlayNodes {
				paths = append(paths, p...)
			}
			if _, err := spec.Nodes(paths); err != nil {
				t.Errorf("node paths do not resolve: %v", err)
			}
		})
	}

	shapes := RequiredShapes([]string{"overlay", "mix_basic_circle", "basic"})
	if len(shapes) != 2 || shapes[0] != overlay.ShapeCircle || shapes[1] != overlay.ShapeRect {
		t.Errorf("RequiredShapes() = %v", shapes)
	}
	if got := RequiredShapes([]string{"basic"}); len(got) != 0 {
		t.Errorf("basic needs no overlays, got %v", got)
	}
}

func TestValidateTemplates(t *testing.T) {
	got, err := ValidateTemplates(ParseTemplateList(" overlay, ,circle ", nil))
	if err != nil || len(got) != 2 || got[1] != "circle" {
		t.Errorf("ValidateTemplates() = %v, %v", got, err)
	}
	if _, err := ValidateTemplates([]string{"overlay", "square"}); err == nil {
		t.Error("expected error for unknown template")
	}
	if _, err := ValidateTemplates(ParseTemplateList("", nil)); err == nil {
		t.Error("expected error for empty list")
	}
	if got := ParseTemplateList("", []string{"basic"}); len(got) != 1 || got[0] != "basic" {
		t.Errorf("ParseTemplateList default = %v", got)
	}
}

func TestComposeOverlayTemplate(t *testing.T) {
	c := newComposer(t)
	in := videoInput("overlay")
	in.HasTranscript = true
	in.AutoCues = []subtitle.Cue{{Text: "Hello there.", Start: 0.05, Length: 2}, {Text: "Bye.", Start: 10, Length: 4}}

	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if res.End != 14 {
		t.Errorf("End = %v, want 14 (subtitles outlast the head)", res.End)
	}

	bg := res.Spec.Clips[0]
	if bg.Src != backgroundURL || bg.Fit != "cover" || bg.Type != "video" {
		t.Errorf("background = %+v", bg)
	}
	if bg.AutoLength || bg.Length == nil || *bg.Length != 14 {
		t.Errorf("background length not locked: %+v", bg)
	}

	head := res.Spec.Overlays[0]
	if head.Src != rectURL || head.Fit != "contain" || head.AutoLength || head.LengthOr(0) != 14 {
		t.Errorf("overlay = %+v", head)
	}
	if len(res.Spec.Subtitles) != 2 || res.Spec.Background != "" || res.Spec.SubtitleTheme != "boxed" {
		t.Errorf("spec = %+v", res.Spec)
	}

	if res.Path != filepath.Join(c.OutputDir, "talking_head_overlay.json") {
		t.Errorf("path = %s", res.Path)
	}
	written, err := LoadSpec(res.Path)
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if written.Clips[0].LengthOr(0) != 14 || written.Overlays[0].Src != rectURL {
		t.Errorf("written spec = %+v", written)
	}
}

func TestComposeImageBackgroundWithBookends(t *testing.T) {
	c := newComposer(t)
	in := Input{
		Template:        "basic",
		HeadURL:         headURL,
		HeadDuration:    10,
		BackgroundURL:   "https://cdn.example.com/bg.png",
		Background:      media.Meta{Width: 1920, Height: 1080, Type: media.TypeImage},
		Fit:             media.FitContain,
		BackgroundColor: "#112233",
		SubtitleMode:    SubtitlesNone,
		Intro:           &Bookend{URL: "https://cdn.example.com/intro.mp4", Type: media.TypeVideo, Length: 2},
		Outro:           &Bookend{URL: "https://cdn.example.com/outro.png", Type: media.TypeImage, Length: 0.05},
	}

	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	clips := res.Spec.Clips
	if len(clips) != 4 {
		t.Fatalf("expected intro, two head clips and outro, got %d clips", len(clips))
	}

	intro := clips[0]
	if intro.Src != in.Intro.URL || intro.StartAt() != 0 || intro.LengthOr(0) != 2 || intro.Transition == nil || intro.Transition.In != "fade" {
		t.Errorf("intro = %+v", intro)
	}
	if clips[1].Src != headURL || clips[1].StartAt() != 2 {
		t.Errorf("head clip = %+v", clips[1])
	}
	if clips[2].StartAt() != 5 || clips[2].LengthOr(0) != 7 || clips[2].AutoLength {
		t.Errorf("zoomed head clip = %+v", clips[2])
	}
	outro := clips[3]
	if outro.StartAt() != 12 || outro.LengthOr(0) != 0.1 || outro.Type != "image" {
		t.Errorf("outro = %+v", outro)
	}

	bg := res.Spec.Overlays[0]
	if bg.Type != "image" || bg.Trim != nil || bg.Fit != "contain" {
		t.Errorf("background = %+v", bg)
	}
	if bg.StartAt() != 5 || bg.LengthOr(0) != 7 {
		t.Errorf("background placed at %v for %v, want 5 for 7", bg.StartAt(), bg.LengthOr(0))
	}
	if res.Spec.Background != "#112233" {
		t.Errorf("background color = %q", res.Spec.Background)
	}
	if res.Spec.Subtitles != nil {
		t.Error("subtitles should be removed")
	}
}

func TestComposeBookendScope(t *testing.T) {
	c := newComposer(t)
	in := videoInput("overlay")
	in.Intro = &Bookend{URL: "https://cdn.example.com/intro.mp4", Type: media.TypeVideo, Length: 2, Templates: []string{"circle"}}

	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(res.Spec.Clips) != 1 || res.Spec.Clips[0].StartAt() != 0 {
		t.Errorf("intro applied outside its templates: %+v", res.Spec.Clips)
	}
}

func TestComposeFixedBackground(t *testing.T) {
	c := newComposer(t)
	in := videoInput("overlay")
	in.HeadDuration = 8
	in.Background.Duration = 20
	in.BackgroundMode = BackgroundFixed

	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	bg := res.Spec.Clips[0]
	if bg.LengthOr(0) != 20 || bg.AutoLength {
		t.Errorf("fixed background = %+v", bg)
	}
	if res.End != 20 {
		t.Errorf("End = %v, want 20", res.End)
	}
}

func TestComposeSubtitleModes(t *testing.T) {
	fileCues := []subtitle.Cue{{Text: "from file", Start: 1, Length: 2}}
	autoCues := []subtitle.Cue{{Text: "aligned", Start: 0.05, Length: 3}}

	tests := []struct {
		name       string
		mode       SubtitleMode
		file       []subtitle.Cue
		transcript bool
		want       string
	}{
		{"none drops cues", SubtitlesNone, fileCues, true, ""},
		{"manual without file", SubtitlesManual, nil, true, ""},
		{"manual with file", SubtitlesManual, fileCues, false, "from file"},
		{"auto prefers file", SubtitlesAuto, fileCues, true, "from file"},
		{"auto aligned", SubtitlesAuto, nil, true, "aligned"},
		{"auto without transcript", SubtitlesAuto, nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := videoInput("overlay")
			in.SubtitleMode = tt.mode
			in.FileCues = tt.file
			in.AutoCues = autoCues
			in.HasTranscript = tt.transcript

			res, err := newComposer(t).Compose(in)
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			var got string
			if len(res.Spec.Subtitles) > 0 {
				got = res.Spec.Subtitles[0].Text
			}
			if got != tt.want {
				t.Errorf("first cue = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposeMissingOverlay(t *testing.T) {
	c := newComposer(t)
	in := videoInput("mix_basic_circle")
	in.OverlayURLs = map[overlay.Shape]string{overlay.ShapeRect: rectURL}

	_, err := c.Compose(in)
	var missing *MissingOverlayError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingOverlayError, got %v", err)
	}
	if missing.Shape != overlay.ShapeCircle || missing.Template != "mix_basic_circle" {
		t.Errorf("error = %+v", missing)
	}
	if _, err := os.Stat(filepath.Join(c.OutputDir, "talking_head_mix_basic_circle.json")); !os.IsNotExist(err) {
		t.Error("spec written despite missing overlay")
	}
}

func TestComposeAppliesConfiguredBlocks(t *testing.T) {
	c := newComposer(t)
	c.Blocks = Blocks{"circle": {AppendOverlays: []Clip{{Type: "image", Src: "https://cdn.example.com/cta.png", Length: Float(2)}}}}

	res, err := c.Compose(videoInput("circle"))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(res.Spec.Overlays) != 2 {
		t.Fatalf("overlays = %+v", res.Spec.Overlays)
	}
	if got := res.Spec.Overlays[1].StartAt(); got != 12.5 {
		t.Errorf("appended overlay start = %v, want 12.5", got)
	}
}

func TestComposeLocksEveryEntry(t *testing.T) {
	backgrounds := map[string]media.Meta{
		"video": {Width: 1080, Height: 1920, Duration: 30, Type: media.TypeVideo},
		"image": {Width: 1080, Height: 1920, Type: media.TypeImage},
	}
	for _, name := range Names() {
		for kind, meta := range backgrounds {
			t.Run(name+"/"+kind, func(t *testing.T) {
				in := videoInput(name)
				in.Background = meta

				res, err := newComposer(t).Compose(in)
				if err != nil {
					t.Fatalf("Compose: %v", err)
				}
				if res.End != in.HeadDuration {
					t.Errorf("End = %v, want %v", res.End, in.HeadDuration)
				}
				tracks := map[string][]Clip{"clips": res.Spec.Clips, "overlays": res.Spec.Overlays}
				for track, entries := range tracks {
					for i, c := range entries {
						if c.Length == nil || c.AutoLength || c.MatchLengthTo != "" {
							t.Errorf("%s[%d] (%s) has no concrete length: %+v", track, i, c.Label, c)
							continue
						}
						if end := c.StartAt() + *c.Length; end > res.End+1e-9 {
							t.Errorf("%s[%d] (%s) ends at %v, past %v", track, i, c.Label, end, res.End)
						}
					}
				}
			})
		}
	}
}

func TestComposeImageBackgroundAfterBlockPrepend(t *testing.T) {
	c := newComposer(t)
	c.Blocks = Blocks{"circle": {PrependClips: []Clip{{Type: "video", Src: "https://cdn.example.com/hook.mp4", Length: Float(3)}}}}
	in := videoInput("circle")
	in.HeadDuration = 10
	in.Background = media.Meta{Width: 1080, Height: 1920, Type: media.TypeImage}

	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(res.Spec.Clips) != 2 {
		t.Fatalf("clips = %+v", res.Spec.Clips)
	}
	bg := res.Spec.Clips[1]
	if bg.Src != backgroundURL || bg.StartAt() != 3 || bg.LengthOr(0) != 10 {
		t.Errorf("background placed at %v for %v, want 3 for 10", bg.StartAt(), bg.LengthOr(0))
	}
	head := res.Spec.Overlays[0]
	if head.StartAt()+head.LengthOr(0) != bg.StartAt()+bg.LengthOr(0) {
		t.Errorf("head ends at %v, background at %v", head.StartAt()+head.LengthOr(0), bg.StartAt()+bg.LengthOr(0))
	}
}
