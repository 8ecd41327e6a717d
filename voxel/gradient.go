package voxel

import (
	"math"

	"github.com/neuroviz/neuroviz/nifti"
)

// GradientMagnitudeSlice computes the 2D intensity gradient magnitude of
// one axial slice using central differences in the interior and one-sided
// differences at the borders. The result is indexed y*Nx+x.
func GradientMagnitudeSlice(vol *nifti.Volume, z, t int) []float64 {
	nx, ny := vol.Nx, vol.Ny
	out := make([]float64, nx*ny)

	diff := func(prev, next float32, span float64) float64 {
		return float64(next-prev) / span
	}

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			var gx, gy float64

			switch {
			case nx == 1:
			case x == 0:
				gx = diff(vol.At(0, y, z, t), vol.At(1, y, z, t), 1)
			case x == nx-1:
				gx = diff(vol.At(nx-2, y, z, t), vol.At(nx-1, y, z, t), 1)
			default:
				gx = diff(vol.At(x-1, y, z, t), vol.At(x+1, y, z, t), 2)
			}

			switch {
			case ny == 1:
			case y == 0:
				gy = diff(vol.At(x, 0, z, t), vol.At(x, 1, z, t), 1)
			case y == ny-1:
				gy = diff(vol.At(x, ny-2, z, t), vol.At(x, ny-1, z, t), 1)
			default:
				gy = diff(vol.At(x, y-1, z, t), vol.At(x, y+1, z, t), 2)
			}

			out[y*nx+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}

	return out
}

// EdgeClarity returns the fraction of pixels in the middle axial slice whose
// normalized gradient magnitude exceeds threshold. A fraction above 0.05 is
// taken to mean the volume has usable anatomical edges.
func EdgeClarity(vol *nifti.Volume, threshold float64) float64 {
	grad := GradientMagnitudeSlice(vol, vol.Nz/2, 0)

	var max float64
	for _, g := range grad {
		if g > max {
			max = g
		}
	}
	if max == 0 {
		return 0
	}

	var clear int
	for _, g := range grad {
		if g/max > threshold {
			clear++
		}
	}

	return float64(clear) / float64(len(grad))
}

// ClearEdgeCriterion is the minimum EdgeClarity fraction for a volume to
// pass validation.
const ClearEdgeCriterion = 0.05
