package overlay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"net/http"
	"time"
)

// foreground/background separation backend
type Segmenter interface {
	Segment(ctx context.Context, frame image.Image) (*Mask, error)
}

// posts each frame as PNG to a segmentation service that answers with a
// grayscale PNG mask of the same size
type HTTPSegmenter struct {
	URL    string
	Client *http.Client
}

func NewHTTPSegmenter(url string) *HTTPSegmenter {
	return &HTTPSegmenter{
		URL:    url,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPSegmenter) Segment(ctx context.Context, frame image.Image) (*Mask, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, frame); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "image/png")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segmentation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("segmentation service returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}

	b := frame.Bounds()
	if img.Bounds().Dx() != b.Dx() || img.Bounds().Dy() != b.Dy() {
		return nil, fmt.Errorf("mask is %dx%d, frame is %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy(), b.Dx(), b.Dy())
	}
	return MaskFromImage(img), nil
}

// mask from the luminance of a grayscale (or any) image
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			m.Set(x, y, float32(g.Y)/0xffff)
		}
	}
	return m
}

// keys out a uniform backdrop color. pixels within Tolerance of the key
// are background, pixels beyond Tolerance+Softness are foreground.
type ChromaKeySegmenter struct {
	Key       color.RGBA
	Tolerance float64 // normalized RGB distance, 0..1
	Softness  float64
}

func NewChromaKeySegmenter() *ChromaKeySegmenter {
	return &ChromaKeySegmenter{
		Key:       color.RGBA{R: 0, G: 177, B: 64, A: 255},
		Tolerance: 0.25,
		Softness:  0.15,
	}
}

func (s *ChromaKeySegmenter) Segment(ctx context.Context, frame image.Image) (*Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := frame.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	kr, kg, kb := float64(s.Key.R)/255, float64(s.Key.G)/255, float64(s.Key.B)/255
	soft := math.Max(s.Softness, 1e-6)

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			r, g, bl, _ := frame.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dr := float64(r)/0xffff - kr
			dg := float64(g)/0xffff - kg
			db := float64(bl)/0xffff - kb
			dist := math.Sqrt(dr*dr+dg*dg+db*db) / math.Sqrt(3)
			m.Set(x, y, float32(clamp((dist-s.Tolerance)/soft, 0, 1)))
		}
	}
	return m, nil
}
