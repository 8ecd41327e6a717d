package voxel

import (
	"math"
	"testing"

	"github.com/neuroviz/neuroviz/nifti"
)

func rampVolume(nx, ny, nz int, f func(x, y, z int) float32) *nifti.Volume {
	vol := nifti.NewVolume(nx, ny, nz, 1, [3]float32{1, 1, 1})
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				vol.SetAt(x, y, z, 0, f(x, y, z))
			}
		}
	}

	return vol
}

func stdDev(vol *nifti.Volume) float64 {
	var sum float64
	for _, v := range vol.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(vol.Data))

	var ss float64
	for _, v := range vol.Data {
		d := float64(v) - mean
		ss += d * d
	}

	return math.Sqrt(ss / float64(len(vol.Data)))
}

func TestRescale(t *testing.T) {
	vol := rampVolume(4, 4, 4, func(x, y, z int) float32 {
		return float32(x+y+z)*100 - 300
	})

	out := Rescale(vol, 0, 255)

	min, max := out.MinMax()
	if min != 0 || max != 255 {
		t.Errorf("rescaled range [%g, %g], want [0, 255]", min, max)
	}

	// The input must not change.
	if inMin, _ := vol.MinMax(); inMin != -300 {
		t.Errorf("input was mutated: min %g", inMin)
	}

	if NeedsRescale(vol, 0, 255) != true {
		t.Error("input should need rescaling")
	}
	if NeedsRescale(out, 0, 255) != false {
		t.Error("output should not need rescaling")
	}
}

func TestRescaleConstantVolume(t *testing.T) {
	vol := rampVolume(3, 3, 3, func(x, y, z int) float32 { return 7 })

	out := Rescale(vol, 0, 255)
	for _, v := range out.Data {
		if v != 0 {
			t.Fatalf("constant volume should map to the lower bound, got %g", v)
		}
	}
}

func TestThresholdBinary(t *testing.T) {
	vol := rampVolume(3, 1, 1, func(x, y, z int) float32 { return float32(x) * 50 })

	out := ThresholdBinary(vol, 30, 60)

	want := []float32{0, 1, 0}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("voxel %d: got %g, want %g", i, out.Data[i], w)
		}
	}
}

func TestBiasCorrectFlattensRamp(t *testing.T) {
	// Uniform tissue under a multiplicative intensity ramp.
	vol := rampVolume(24, 24, 24, func(x, y, z int) float32 {
		bias := 0.5 + float32(x)/24
		return 100 * bias
	})

	out := BiasCorrect(vol, 4)

	if got, want := stdDev(out), stdDev(vol); got >= want {
		t.Errorf("bias correction did not reduce spread: %g -> %g", want, got)
	}

	// Same grid, roughly the same overall brightness.
	if out.Nx != vol.Nx || out.Ny != vol.Ny || out.Nz != vol.Nz {
		t.Error("grid changed")
	}
}

func TestBilateralPreservesStep(t *testing.T) {
	// A sharp step with a tight range kernel: neighbors across the step get
	// negligible weight, so the step must survive.
	vol := rampVolume(10, 4, 4, func(x, y, z int) float32 {
		if x < 5 {
			return 0
		}
		return 100
	})

	out := Bilateral(vol, 1.0, 1.0)

	if v := out.At(1, 2, 2, 0); math.Abs(float64(v)) > 0.5 {
		t.Errorf("low side drifted to %g", v)
	}
	if v := out.At(8, 2, 2, 0); math.Abs(float64(v)-100) > 0.5 {
		t.Errorf("high side drifted to %g", v)
	}

	edge := out.At(5, 2, 2, 0) - out.At(4, 2, 2, 0)
	if edge < 90 {
		t.Errorf("step contrast collapsed to %g", edge)
	}
}

func TestAdaptiveEqualizeStretchesSkewedSlices(t *testing.T) {
	// Mostly dark pixels with a few bright ones. Unclipped equalization
	// must push the dark mass upward; near-zero clipping must not.
	skewed := func(x, y, z int) float32 {
		if (x+y)%10 == 0 {
			return 200
		}
		return 10
	}
	vol := rampVolume(64, 64, 2, skewed)

	unclipped := AdaptiveEqualize(vol, 1.0)
	clipped := AdaptiveEqualize(vol, 0.001)

	if v := unclipped.At(3, 2, 0, 0); v < 100 {
		t.Errorf("dark pixel stayed at %g under unclipped equalization", v)
	}

	min, max := vol.MinMax()
	for i, v := range unclipped.Data {
		if v < min-0.5 || v > max+0.5 {
			t.Fatalf("voxel %d left the slice range: %g not in [%g, %g]", i, v, min, max)
		}
	}

	meanOf := func(v *nifti.Volume) float64 {
		var sum float64
		for _, d := range v.Data {
			sum += float64(d)
		}
		return sum / float64(len(v.Data))
	}

	in := meanOf(vol)
	if dClipped, dUnclipped := math.Abs(meanOf(clipped)-in), math.Abs(meanOf(unclipped)-in); dClipped >= dUnclipped {
		t.Errorf("clip limit had no effect: clipped shift %g, unclipped shift %g", dClipped, dUnclipped)
	}
}

func TestGradientMagnitudeSliceOnRamp(t *testing.T) {
	vol := rampVolume(8, 8, 3, func(x, y, z int) float32 { return float32(x) })

	grad := GradientMagnitudeSlice(vol, 1, 0)
	for i, g := range grad {
		if math.Abs(g-1) > 1e-6 {
			t.Fatalf("pixel %d: gradient %g, want 1", i, g)
		}
	}
}

func TestEdgeClarity(t *testing.T) {
	flat := rampVolume(16, 16, 3, func(x, y, z int) float32 { return 50 })
	if got := EdgeClarity(flat, 0.1); got != 0 {
		t.Errorf("flat volume clarity %g, want 0", got)
	}

	step := rampVolume(16, 16, 3, func(x, y, z int) float32 {
		if x < 8 {
			return 0
		}
		return 255
	})
	if got := EdgeClarity(step, 0.1); got <= ClearEdgeCriterion {
		t.Errorf("step volume clarity %g, want > %g", got, ClearEdgeCriterion)
	}
}

func TestSummarize(t *testing.T) {
	vol := rampVolume(2, 2, 1, func(x, y, z int) float32 {
		return float32(1 + x + 2*y)
	})

	got, err := Summarize(vol)
	if err != nil {
		t.Fatal(err)
	}

	if got.NVox != 4 {
		t.Errorf("nvox: got %d", got.NVox)
	}
	if got.Min != 1 || got.Max != 4 {
		t.Errorf("range: got [%g, %g]", got.Min, got.Max)
	}
	if got.Mean != 2.5 {
		t.Errorf("mean: got %g", got.Mean)
	}
	if got.Median != 2.5 {
		t.Errorf("median: got %g", got.Median)
	}
}
