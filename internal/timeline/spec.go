package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mgpai22/headcut/internal/subtitle"
)

// declarative composition handed to the renderer
type Spec struct {
	Clips         []Clip         `json:"clips" yaml:"clips"`
	Overlays      []Clip         `json:"overlays,omitempty" yaml:"overlays,omitempty"`
	Subtitles     []subtitle.Cue `json:"subtitles,omitempty" yaml:"subtitles,omitempty"`
	Background    string         `json:"background,omitempty" yaml:"background,omitempty"`
	SubtitleTheme string         `json:"subtitle_theme,omitempty" yaml:"subtitle_theme,omitempty"`
	Output        *Output        `json:"output,omitempty" yaml:"output,omitempty"`
	Soundtrack    *Soundtrack    `json:"soundtrack,omitempty" yaml:"soundtrack,omitempty"`
	CallbackURL   string         `json:"callback_url,omitempty" yaml:"callback_url,omitempty"`
}

// one entry on the clips or overlays track. nil pointers are unset fields.
type Clip struct {
	Type          string           `json:"type,omitempty" yaml:"type,omitempty"`
	Src           string           `json:"src,omitempty" yaml:"src,omitempty"`
	HTML          string           `json:"html,omitempty" yaml:"html,omitempty"`
	Text          string           `json:"text,omitempty" yaml:"text,omitempty"`
	Label         string           `json:"label,omitempty" yaml:"label,omitempty"`
	Start         *float64         `json:"start,omitempty" yaml:"start,omitempty"`
	Length        *float64         `json:"length,omitempty" yaml:"length,omitempty"`
	AutoLength    bool             `json:"auto_length,omitempty" yaml:"auto_length,omitempty"`
	MatchLengthTo string           `json:"match_length_to,omitempty" yaml:"match_length_to,omitempty"`
	Trim          *float64         `json:"trim,omitempty" yaml:"trim,omitempty"`
	Speed         *float64         `json:"speed,omitempty" yaml:"speed,omitempty"`
	Volume        *float64         `json:"volume,omitempty" yaml:"volume,omitempty"`
	Fit           string           `json:"fit,omitempty" yaml:"fit,omitempty"`
	Position      string           `json:"position,omitempty" yaml:"position,omitempty"`
	Offset        *subtitle.Offset `json:"offset,omitempty" yaml:"offset,omitempty"`
	Scale         *float64         `json:"scale,omitempty" yaml:"scale,omitempty"`
	Width         *int             `json:"width,omitempty" yaml:"width,omitempty"`
	Height        *int             `json:"height,omitempty" yaml:"height,omitempty"`
	Opacity       *float64         `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	Transition    *Transition      `json:"transition,omitempty" yaml:"transition,omitempty"`
}

func (c Clip) StartAt() float64 {
	if c.Start == nil {
		return 0
	}
	return *c.Start
}

func (c Clip) TrimAt() float64 {
	if c.Trim == nil || *c.Trim < 0 {
		return 0
	}
	return *c.Trim
}

// length when set, def otherwise
func (c Clip) LengthOr(def float64) float64 {
	if c.Length == nil {
		return def
	}
	return *c.Length
}

// video unless the entry says otherwise
func (c Clip) AssetType() string {
	if c.Type == "" {
		return "video"
	}
	return c.Type
}

// in/out transition names. a bare string decodes as the in transition.
type Transition struct {
	In  string `json:"in,omitempty" yaml:"in,omitempty"`
	Out string `json:"out,omitempty" yaml:"out,omitempty"`
}

func (t *Transition) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.In)
	}
	type plain Transition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transition(p)
	return nil
}

func (t *Transition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.In = value.Value
		return nil
	}
	type plain Transition
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Transition(p)
	return nil
}

type Output struct {
	Format      string  `json:"format,omitempty" yaml:"format,omitempty"`
	Resolution  string  `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty"`
	FPS         float64 `json:"fps,omitempty" yaml:"fps,omitempty"`
}

type Soundtrack struct {
	Src    string   `json:"src" yaml:"src"`
	Effect string   `json:"effect,omitempty" yaml:"effect,omitempty"`
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}
	return &spec, nil
}

func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// writes the spec as indented JSON, creating parent directories
func (s *Spec) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
