package media

import "testing"

func TestDecideFit(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		tol           float64
		want          Fit
	}{
		{"exact 9:16", 1080, 1920, 0.02, FitCover},
		{"just inside upper band", 5770, 10000, 0.02, FitCover},
		{"just inside lower band", 5480, 10000, 0.02, FitCover},
		{"just outside upper band", 5830, 10000, 0.02, FitContain},
		{"just outside lower band", 5420, 10000, 0.02, FitContain},
		{"landscape 16:9", 1920, 1080, 0.02, FitContain},
		{"square", 1080, 1080, 0.02, FitContain},
		{"zero width", 0, 1920, 0.02, FitCover},
		{"negative height", 1080, -1, 0.02, FitCover},
		{"wide tolerance", 1080, 1080, 0.5, FitCover},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideFit(tt.width, tt.height, tt.tol); got != tt.want {
				t.Errorf("DecideFit(%d, %d, %v) = %s, want %s", tt.width, tt.height, tt.tol, got, tt.want)
			}
		})
	}
}

func TestDecideFitSymmetricAroundTarget(t *testing.T) {
	const height = 100000
	for _, delta := range []float64{0.005, 0.01, 0.019, 0.021, 0.03, 0.1} {
		above := int((TargetAspect + delta) * height)
		below := int((TargetAspect-delta)*height + 0.999)
		a := DecideFit(above, height, DefaultFitTolerance)
		b := DecideFit(below, height, DefaultFitTolerance)
		if a != b {
			t.Errorf("delta %v: above=%s below=%s, want equal", delta, a, b)
		}
	}
}

func TestDecideFitMonotonic(t *testing.T) {
	const height = 10000
	seenContain := false
	for w := int(TargetAspect * height); w < height; w += 10 {
		fit := DecideFit(w, height, DefaultFitTolerance)
		if fit == FitContain {
			seenContain = true
		} else if seenContain {
			t.Fatalf("fit flipped back to cover at width %d", w)
		}
	}
	if !seenContain {
		t.Error("never reached contain moving away from 9:16")
	}
}
