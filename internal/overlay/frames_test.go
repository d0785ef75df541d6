package overlay

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// reports every pixel as foreground, failing on a chosen call
type fakeSegmenter struct {
	calls  atomic.Int32
	failOn int32
}

func (f *fakeSegmenter) Segment(_ context.Context, frame image.Image) (*Mask, error) {
	n := f.calls.Add(1)
	if f.failOn > 0 && n == f.failOn {
		return nil, errors.New("model crashed")
	}
	b := frame.Bounds()
	return filled(b.Dx(), b.Dy(), 1), nil
}

func writeFrames(t *testing.T, dir string, n, w, h int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
			}
		}
		path := filepath.Join(dir, "frame_000"+string(rune('0'+i))+".png")
		if err := writePNG(path, img); err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}
}

func TestMatteFramesCircle(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeFrames(t, src, 3, 20, 20)

	opts := FrameOptions{
		Shape:       ShapeCircle,
		Refine:      DefaultRefineOptions(),
		Circle:      DefaultCircle(),
		Concurrency: 2,
	}
	count, circle, err := MatteFrames(context.Background(), &fakeSegmenter{}, src, dst, opts)
	if err != nil {
		t.Fatalf("MatteFrames: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if circle != DefaultCircle() {
		t.Errorf("circle = %+v, want configured params", circle)
	}

	img, err := readPNG(filepath.Join(dst, "frame_0001.png"))
	if err != nil {
		t.Fatalf("read matted frame: %v", err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("matted frame decoded as %T, want *image.NRGBA", img)
	}
	if c := nrgba.NRGBAAt(10, 10); c != (color.NRGBA{R: 200, G: 100, B: 50, A: 255}) {
		t.Errorf("center pixel = %+v", c)
	}
	if c := nrgba.NRGBAAt(0, 0); c != (color.NRGBA{}) {
		t.Errorf("corner pixel = %+v, want fully transparent black", c)
	}
}

func TestMatteFramesRectKeepsFrame(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFrames(t, src, 1, 8, 8)

	opts := FrameOptions{Shape: ShapeRect, Refine: DefaultRefineOptions()}
	if _, _, err := MatteFrames(context.Background(), &fakeSegmenter{}, src, dst, opts); err != nil {
		t.Fatalf("MatteFrames: %v", err)
	}
	img, err := readPNG(filepath.Join(dst, "frame_0000.png"))
	if err != nil {
		t.Fatalf("read matted frame: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0xffff {
		t.Errorf("rect overlay corner alpha = %d, want opaque", a)
	}
}

func TestMatteFramesAutoCenter(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFrames(t, src, 2, 10, 10)

	seg := &fakeSegmenter{}
	opts := FrameOptions{Shape: ShapeCircle, Refine: RefineOptions{Threshold: 0.6}, Circle: DefaultCircle(), AutoCenter: true}
	_, circle, err := MatteFrames(context.Background(), seg, src, dst, opts)
	if err != nil {
		t.Fatalf("MatteFrames: %v", err)
	}
	if circle.Radius != 0.5 || circle.CenterX != 0.5 || circle.CenterY != 0.5 {
		t.Errorf("auto circle = %+v", circle)
	}
	// first frame is segmented once more to derive the circle
	if got := seg.calls.Load(); got != 3 {
		t.Errorf("segment calls = %d, want 3", got)
	}
}

func TestMatteFramesErrors(t *testing.T) {
	t.Run("no frames", func(t *testing.T) {
		_, _, err := MatteFrames(context.Background(), &fakeSegmenter{}, t.TempDir(), t.TempDir(), FrameOptions{})
		if err == nil || !strings.Contains(err.Error(), "no frames") {
			t.Errorf("expected no frames error, got %v", err)
		}
	})

	t.Run("segmenter failure aborts", func(t *testing.T) {
		src := t.TempDir()
		writeFrames(t, src, 4, 6, 6)
		_, _, err := MatteFrames(context.Background(), &fakeSegmenter{failOn: 2}, src, t.TempDir(), FrameOptions{Shape: ShapeRect, Concurrency: 1})
		if err == nil || !strings.Contains(err.Error(), "model crashed") {
			t.Errorf("expected segmenter error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		src := t.TempDir()
		writeFrames(t, src, 2, 6, 6)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, _, err := MatteFrames(ctx, &fakeSegmenter{}, src, t.TempDir(), FrameOptions{Shape: ShapeRect}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

