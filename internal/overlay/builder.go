package overlay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/media"
)

// publishes a finished overlay file and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Options struct {
	Container   Container
	Refine      RefineOptions
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Container:   ContainerMOV,
		Refine:      DefaultRefineOptions(),
		Concurrency: 4,
	}
}

// circle gate requested for circle overlays
type Gate struct {
	Circle CircleParams
	// derive center and radius from the first frame instead of Circle
	AutoCenter bool
}

func DefaultGate() Gate {
	return Gate{Circle: DefaultCircle(), AutoCenter: true}
}

// uploaded overlay. Circle is the gate actually applied, nil for rect.
type Asset struct {
	URL    string
	Circle *CircleParams
}

// turns a talking head clip into alpha-matted overlays, one per shape
type Builder struct {
	Segmenter Segmenter
	Uploader  Uploader
	Prober    media.Prober
	HTTP      *http.Client
	Options   Options
	// parent of the per-shape work directories, os.TempDir when empty
	TempDir string
	Logger  *logging.Logger
}

// builds and uploads one overlay per distinct shape
func (b *Builder) Build(ctx context.Context, headURL string, shapes []Shape, gate Gate) (map[Shape]Asset, error) {
	unique := make(map[Shape]struct{}, len(shapes))
	for _, s := range shapes {
		unique[s] = struct{}{}
	}
	ordered := make([]Shape, 0, len(unique))
	for s := range unique {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	assets := make(map[Shape]Asset, len(ordered))
	for _, shape := range ordered {
		a, err := b.BuildShape(ctx, headURL, shape, gate)
		if err != nil {
			return nil, fmt.Errorf("overlay %s: %w", shape, err)
		}
		assets[shape] = a
	}
	return assets, nil
}

func (b *Builder) BuildShape(ctx context.Context, headURL string, shape Shape, gate Gate) (Asset, error) {
	log := b.Logger.Or().With("shape", shape)

	if shape == ShapeCircle && !gate.AutoCenter {
		if err := gate.Circle.Validate(); err != nil {
			return Asset{}, err
		}
	}

	dir, err := os.MkdirTemp(b.TempDir, "overlay_"+string(shape)+"_")
	if err != nil {
		return Asset{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	source := headURL
	if media.IsRemote(headURL) {
		source = filepath.Join(dir, "input.mp4")
		log.Infow("downloading head clip", "url", headURL)
		if err := media.Download(ctx, b.HTTP, headURL, source); err != nil {
			return Asset{}, err
		}
	}

	meta, err := b.Prober.Probe(ctx, source)
	if err != nil {
		return Asset{}, err
	}
	if meta.IsImage() {
		return Asset{}, fmt.Errorf("head clip %s is not a video", headURL)
	}

	rawDir := filepath.Join(dir, "raw")
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return Asset{}, err
	}
	if err := ExtractFrames(ctx, source, rawDir); err != nil {
		return Asset{}, err
	}

	frameOpts := FrameOptions{
		Shape:       shape,
		Refine:      b.Options.Refine,
		Circle:      gate.Circle,
		AutoCenter:  gate.AutoCenter,
		Concurrency: b.Options.Concurrency,
	}
	mattedDir := filepath.Join(dir, "frames")
	count, circle, err := MatteFrames(ctx, b.Segmenter, rawDir, mattedDir, frameOpts)
	if err != nil {
		return Asset{}, err
	}
	if err := os.RemoveAll(rawDir); err != nil {
		log.Warnw("failed to remove raw frames", "error", err)
	}
	if shape == ShapeCircle {
		log.Infow("circle gate", "radius", circle.Radius, "center_x", circle.CenterX, "center_y", circle.CenterY)
	}
	log.Infow("frames matted", "frames", count, "fps", meta.FPS)

	audioPath := filepath.Join(dir, "audio"+audio.TrackExtension(source))
	if err := audio.ExtractTrack(ctx, source, audioPath); err != nil {
		return Asset{}, err
	}

	out := filepath.Join(dir, "overlay_"+string(shape)+b.Options.Container.Extension())
	if err := EncodeAlpha(ctx, mattedDir, audioPath, out, meta.FPS, b.Options.Container); err != nil {
		return Asset{}, err
	}

	url, err := b.Uploader.Upload(ctx, out)
	if err != nil {
		return Asset{}, err
	}
	asset := Asset{URL: url}
	if shape == ShapeCircle {
		asset.Circle = &circle
	}
	return asset, nil
}
