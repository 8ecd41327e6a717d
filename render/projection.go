package render

import (
	"image"
	"image/color"

	"github.com/neuroviz/neuroviz/nifti"
)

type ProjectionMode int

const (
	MaximumIntensity ProjectionMode = iota
	AverageIntensity
)

// Project collapses the volume along the plane's fixed axis into a single
// 16-bit image, keeping either the brightest voxel on each ray or the ray
// mean.
func Project(vol *nifti.Volume, plane Plane, mode ProjectionMode, t int, maxIntensity float64) *image.Gray16 {
	depth := SliceCount(vol, plane)
	w, h, _ := sliceDims(vol, plane, 0, t)

	maxRay := make([]float32, w*h)
	sumRay := make([]float64, w*h)

	for d := 0; d < depth; d++ {
		_, _, at := sliceDims(vol, plane, d, t)

		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				intensityHere := at(i, j)
				idx := j*w + i

				sumRay[idx] += float64(intensityHere)

				if intensityHere > maxRay[idx] {
					maxRay[idx] = intensityHere
				}
			}
		}
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			idx := j*w + i

			if mode == AverageIntensity {
				img.SetGray16(i, j, color.Gray16{Y: ApplyWindowScaling(sumRay[idx]/float64(depth), maxIntensity)})
			} else {
				img.SetGray16(i, j, color.Gray16{Y: ApplyWindowScaling(float64(maxRay[idx]), maxIntensity)})
			}
		}
	}

	return img
}
