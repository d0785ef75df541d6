package overlay

import (
	"math"
)

// single channel foreground probability, row-major, values in [0,1]
type Mask struct {
	W, H int
	Data []float32
}

func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Data: make([]float32, w*h)}
}

func (m *Mask) At(x, y int) float32 {
	return m.Data[y*m.W+x]
}

func (m *Mask) Set(x, y int, v float32) {
	m.Data[y*m.W+x] = v
}

func (m *Mask) Clone() *Mask {
	c := NewMask(m.W, m.H)
	copy(c.Data, m.Data)
	return c
}

// mask refinement settings
type RefineOptions struct {
	Threshold float64 // foreground cut-off, 0.6 by default
	Feather   int     // gaussian kernel size, 0 disables
}

func DefaultRefineOptions() RefineOptions {
	return RefineOptions{Threshold: 0.6, Feather: 7}
}

// 5x5 elliptical structuring element
var ellipse5 = [5][5]bool{
	{false, false, true, false, false},
	{true, true, true, true, true},
	{true, true, true, true, true},
	{true, true, true, true, true},
	{false, false, true, false, false},
}

// thresholds the mask, removes speckles and holes with a close then open
// pass, keeps the soft values inside the cleaned region and feathers edges
func Refine(m *Mask, opts RefineOptions) *Mask {
	threshold := float32(clamp(opts.Threshold, 0, 1))

	soft := NewMask(m.W, m.H)
	binary := make([]bool, len(m.Data))
	for i, v := range m.Data {
		v = float32(clamp(float64(v), 0, 1))
		soft.Data[i] = v
		binary[i] = v >= threshold
	}

	binary = erode(dilate(binary, m.W, m.H), m.W, m.H)
	binary = dilate(erode(binary, m.W, m.H), m.W, m.H)

	for i := range soft.Data {
		if !binary[i] {
			soft.Data[i] = 0
		}
	}

	if k := FeatherKernel(opts.Feather); k > 0 {
		soft = gaussianBlur(soft, k)
	}
	return soft
}

// kernel size actually used for a requested feather value
func FeatherKernel(feather int) int {
	if feather <= 0 {
		return 0
	}
	if feather%2 == 0 {
		return feather + 1
	}
	return feather
}

// out-of-frame pixels are ignored
func morph(src []bool, w, h int, want bool) []bool {
	dst := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hit := !want
			for ky := 0; ky < 5 && hit != want; ky++ {
				yy := y + ky - 2
				if yy < 0 || yy >= h {
					continue
				}
				for kx := 0; kx < 5; kx++ {
					xx := x + kx - 2
					if !ellipse5[ky][kx] || xx < 0 || xx >= w {
						continue
					}
					if src[yy*w+xx] == want {
						hit = want
						break
					}
				}
			}
			dst[y*w+x] = hit
		}
	}
	return dst
}

func dilate(src []bool, w, h int) []bool { return morph(src, w, h, true) }

func erode(src []bool, w, h int) []bool { return morph(src, w, h, false) }

// separable blur with the sigma rule used for sigma=0 and reflect-101 borders
func gaussianBlur(m *Mask, k int) *Mask {
	sigma := 0.3*(float64(k-1)*0.5-1) + 0.8
	weights := make([]float64, k)
	half := k / 2
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	tmp := NewMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			var acc float64
			for i, wt := range weights {
				acc += wt * float64(m.At(reflect101(x+i-half, m.W), y))
			}
			tmp.Set(x, y, float32(acc))
		}
	}

	out := NewMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			var acc float64
			for i, wt := range weights {
				acc += wt * float64(tmp.At(x, reflect101(y+i-half, m.H)))
			}
			out.Set(x, y, float32(clamp(acc, 0, 1)))
		}
	}
	return out
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
