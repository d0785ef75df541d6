package timeline

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/mgpai22/headcut/internal/overlay"
)

//go:embed presets/*.json
var presets embed.FS

// which list a node path points into
type Track string

const (
	TrackClips    Track = "clips"
	TrackOverlays Track = "overlays"
)

// addresses one clip of a spec, e.g. clips[1]
type NodePath struct {
	Track Track
	Index int
}

func (p NodePath) String() string {
	return fmt.Sprintf("%s[%d]", p.Track, p.Index)
}

// preset plus the nodes the composer fills in
type Template struct {
	Name            string
	File            string
	HeadNodes       []NodePath
	BackgroundNodes []NodePath
	OverlayNodes    map[overlay.Shape][]NodePath
}

var registry = map[string]Template{
	"overlay": {
		Name:            "overlay",
		File:            "talking_head_overlay.json",
		BackgroundNodes: []NodePath{{TrackClips, 0}},
		OverlayNodes:    map[overlay.Shape][]NodePath{overlay.ShapeRect: {{TrackOverlays, 0}}},
	},
	"circle": {
		Name:            "circle",
		File:            "talking_head_circle.json",
		BackgroundNodes: []NodePath{{TrackClips, 0}},
		OverlayNodes:    map[overlay.Shape][]NodePath{overlay.ShapeCircle: {{TrackOverlays, 0}}},
	},
	"basic": {
		Name:            "basic",
		File:            "talking_head_basic.json",
		HeadNodes:       []NodePath{{TrackClips, 0}, {TrackClips, 1}},
		BackgroundNodes: []NodePath{{TrackOverlays, 0}},
	},
	"mix_basic_overlay": {
		Name:            "mix_basic_overlay",
		File:            "talking_head_mix_basic_overlay.json",
		HeadNodes:       []NodePath{{TrackClips, 0}, {TrackClips, 1}},
		BackgroundNodes: []NodePath{{TrackOverlays, 1}},
		OverlayNodes:    map[overlay.Shape][]NodePath{overlay.ShapeRect: {{TrackOverlays, 0}}},
	},
	"mix_basic_circle": {
		Name:            "mix_basic_circle",
		File:            "talking_head_mix_basic_circle.json",
		HeadNodes:       []NodePath{{TrackClips, 0}, {TrackClips, 1}},
		BackgroundNodes: []NodePath{{TrackOverlays, 1}},
		OverlayNodes:    map[overlay.Shape][]NodePath{overlay.ShapeCircle: {{TrackOverlays, 0}}},
	},
}

// registered template names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (Template, error) {
	t, ok := registry[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown template: %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// trims names, drops empties and rejects unknown templates
func ValidateTemplates(names []string) ([]string, error) {
	var valid []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := Lookup(name); err != nil {
			return nil, err
		}
		valid = append(valid, name)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("template list is empty")
	}
	return valid, nil
}

// comma separated list, def when raw has no names
func ParseTemplateList(raw string, def []string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), def...)
	}
	return items
}

// overlay shapes needed by the given templates, sorted
func RequiredShapes(names []string) []overlay.Shape {
	seen := make(map[overlay.Shape]bool)
	var shapes []overlay.Shape
	for _, name := range names {
		for shape := range registry[name].OverlayNodes {
			if !seen[shape] {
				seen[shape] = true
				shapes = append(shapes, shape)
			}
		}
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })
	return shapes
}

// fresh copy of the embedded preset
func (t Template) Load() (*Spec, error) {
	data, err := presets.ReadFile(path.Join("presets", t.File))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.Name, err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.Name, err)
	}
	return spec, nil
}

func (t Template) shapes() []overlay.Shape {
	shapes := make([]overlay.Shape, 0, len(t.OverlayNodes))
	for shape := range t.OverlayNodes {
		shapes = append(shapes, shape)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })
	return shapes
}
