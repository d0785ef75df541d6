package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// printf pattern of extracted and matted frames
const framePattern = "frame_%04d.png"

// per-frame matting settings
type FrameOptions struct {
	Shape       Shape
	Refine      RefineOptions
	Circle      CircleParams
	AutoCenter  bool
	Concurrency int
}

// mattes every extracted frame in srcDir into a premultiplied RGBA PNG of
// the same name in dstDir. returns the frame count and the circle used.
func MatteFrames(ctx context.Context, seg Segmenter, srcDir, dstDir string, opts FrameOptions) (int, CircleParams, error) {
	frames, err := filepath.Glob(filepath.Join(srcDir, "frame_*.png"))
	if err != nil {
		return 0, opts.Circle, err
	}
	if len(frames) == 0 {
		return 0, opts.Circle, errors.New("no frames extracted from source video")
	}
	sort.Strings(frames)

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return 0, opts.Circle, fmt.Errorf("failed to create frames directory: %w", err)
	}

	circle := opts.Circle
	if opts.Shape == ShapeCircle && opts.AutoCenter {
		_, refined, err := maskFrame(ctx, seg, frames[0], opts.Refine)
		if err != nil {
			return 0, circle, fmt.Errorf("frame 0: %w", err)
		}
		circle = AutoCenter(refined, opts.Circle)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame, alpha, err := maskFrame(gctx, seg, src, opts.Refine)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			if opts.Shape == ShapeCircle {
				circle.Gate(alpha)
			}
			dst := filepath.Join(dstDir, filepath.Base(src))
			if err := writePNG(dst, Premultiply(frame, alpha)); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, circle, err
	}
	return len(frames), circle, nil
}

func maskFrame(ctx context.Context, seg Segmenter, path string, opts RefineOptions) (image.Image, *Mask, error) {
	frame, err := readPNG(path)
	if err != nil {
		return nil, nil, err
	}
	raw, err := seg.Segment(ctx, frame)
	if err != nil {
		return nil, nil, err
	}
	return frame, Refine(raw, opts), nil
}

// color scaled by alpha, alpha channel from the mask
func Premultiply(frame image.Image, alpha *Mask) *image.NRGBA {
	b := frame.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, alpha.W, alpha.H))
	for y := 0; y < alpha.H; y++ {
		for x := 0; x < alpha.W; x++ {
			a := alpha.At(x, y)
			r, g, bl, _ := frame.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := out.PixOffset(x, y)
			out.Pix[i+0] = scale(r>>8, a)
			out.Pix[i+1] = scale(g>>8, a)
			out.Pix[i+2] = scale(bl>>8, a)
			out.Pix[i+3] = scale(255, a)
		}
	}
	return out
}

func scale(v uint32, a float32) uint8 {
	return uint8(math.Round(clamp(float64(v)*float64(a), 0, 255)))
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
