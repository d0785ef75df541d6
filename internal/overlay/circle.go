package overlay

import (
	"fmt"
	"math"
)

const (
	MinCircleRadius = 0.05
	MaxCircleRadius = 0.6
)

// circle gate relative to the frame: radius as a fraction of the shorter
// side, center as fractions of width and height
type CircleParams struct {
	Radius  float64 `json:"radius" yaml:"radius"`
	CenterX float64 `json:"center_x" yaml:"center_x"`
	CenterY float64 `json:"center_y" yaml:"center_y"`
}

func DefaultCircle() CircleParams {
	return CircleParams{Radius: 0.35, CenterX: 0.5, CenterY: 0.5}
}

func (c CircleParams) Validate() error {
	if c.Radius < MinCircleRadius || c.Radius > MaxCircleRadius {
		return fmt.Errorf("circle radius %.3f outside [%.2f, %.2f]", c.Radius, MinCircleRadius, MaxCircleRadius)
	}
	if c.CenterX < 0 || c.CenterX > 1 {
		return fmt.Errorf("circle center x %.3f outside [0, 1]", c.CenterX)
	}
	if c.CenterY < 0 || c.CenterY > 1 {
		return fmt.Errorf("circle center y %.3f outside [0, 1]", c.CenterY)
	}
	return nil
}

// pixel-space center and radius on a w×h frame
func (c CircleParams) Pixels(w, h int) (cx, cy, r float64) {
	r = clamp(c.Radius, 0, 1) * float64(min(w, h))
	cx = clamp(c.CenterX, 0, 1) * float64(w-1)
	cy = clamp(c.CenterY, 0, 1) * float64(h-1)
	return cx, cy, r
}

// whether pixel (x, y) survives the gate on a w×h frame
func (c CircleParams) Contains(w, h, x, y int) bool {
	cx, cy, r := c.Pixels(w, h)
	dx, dy := float64(x)-cx, float64(y)-cy
	return dx*dx+dy*dy <= r*r
}

// zeroes every mask value outside the circle
func (c CircleParams) Gate(m *Mask) {
	cx, cy, r := c.Pixels(m.W, m.H)
	r2 := r * r
	for y := 0; y < m.H; y++ {
		dy := float64(y) - cy
		for x := 0; x < m.W; x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy > r2 {
				m.Data[y*m.W+x] = 0
			}
		}
	}
}

// centers the circle on the foreground bounding box and sizes it to cover
// the box, clamped to the valid radius range. returns fallback when the
// mask has no foreground.
func AutoCenter(m *Mask, fallback CircleParams) CircleParams {
	minX, minY, maxX, maxY := m.W, m.H, -1, -1
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(x, y) < 0.5 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 || m.W < 2 || m.H < 2 {
		return fallback
	}

	boxW, boxH := float64(maxX-minX+1), float64(maxY-minY+1)
	radius := math.Max(boxW, boxH) / 2 / float64(min(m.W, m.H))

	return CircleParams{
		Radius:  clamp(radius, MinCircleRadius, MaxCircleRadius),
		CenterX: clamp(float64(minX+maxX)/2/float64(m.W-1), 0, 1),
		CenterY: clamp(float64(minY+maxY)/2/float64(m.H-1), 0, 1),
	}
}
