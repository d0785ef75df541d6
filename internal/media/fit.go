package media

import "math"

// renderer fit strategy
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
)

// portrait target of every template
const TargetAspect = 9.0 / 16.0

const DefaultFitTolerance = 0.02

// cover when the source aspect is within tolerance of 9:16, contain otherwise.
// unknown dimensions fall back to cover.
func DecideFit(width, height int, tolerance float64) Fit {
	if width <= 0 || height <= 0 {
		return FitCover
	}
	aspect := float64(width) / float64(height)
	if math.Abs(aspect-TargetAspect) <= tolerance {
		return FitCover
	}
	return FitContain
}
