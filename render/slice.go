package render

import (
	"image"
	"image/color"
	"math"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
)

// Plane names a slicing orientation through the voxel grid.
type Plane int

const (
	Axial    Plane = iota // fixed z, the x/y plane
	Coronal               // fixed y, the x/z plane
	Sagittal              // fixed x, the y/z plane
)

func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}

	return "unknown"
}

// Planes lists the slicing orientations in display order. The slice_planes
// setting shows the first N of these.
var Planes = []Plane{Axial, Coronal, Sagittal}

func ParsePlane(s string) (Plane, error) {
	switch s {
	case "axial":
		return Axial, nil
	case "coronal":
		return Coronal, nil
	case "sagittal":
		return Sagittal, nil
	}

	return 0, neuroviz.ConfigErrorf("unknown plane %q", s)
}

// SliceCount returns how many slices the volume has along the plane's fixed
// axis.
func SliceCount(vol *nifti.Volume, plane Plane) int {
	switch plane {
	case Coronal:
		return vol.Ny
	case Sagittal:
		return vol.Nx
	}

	return vol.Nz
}

// ApplyWindowScaling maps an intensity onto the full 16-bit gray range
// relative to the volume maximum. Negative intensities clamp to black.
func ApplyWindowScaling(intensity, maxIntensity float64) uint16 {
	if intensity < 0 {
		intensity = 0
	}
	if maxIntensity <= 0 {
		return 0
	}
	if intensity > maxIntensity {
		intensity = maxIntensity
	}

	return uint16(float64(math.MaxUint16) * intensity / maxIntensity)
}

// sliceDims returns the pixel size of a slice image and a sampler mapping
// pixel (i, j) to a voxel value. Rows are flipped so that the superior (or
// anterior) side renders at the top of the image.
func sliceDims(vol *nifti.Volume, plane Plane, index, t int) (w, h int, at func(i, j int) float32) {
	switch plane {
	case Coronal:
		y := clampIndex(index, vol.Ny)
		return vol.Nx, vol.Nz, func(i, j int) float32 {
			return vol.At(i, y, vol.Nz-1-j, t)
		}
	case Sagittal:
		x := clampIndex(index, vol.Nx)
		return vol.Ny, vol.Nz, func(i, j int) float32 {
			return vol.At(x, i, vol.Nz-1-j, t)
		}
	}

	z := clampIndex(index, vol.Nz)
	return vol.Nx, vol.Ny, func(i, j int) float32 {
		return vol.At(i, vol.Ny-1-j, z, t)
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}

	return i
}

// SliceGray16 renders one slice as 16-bit grayscale. maxIntensity is
// normally the volume maximum, precomputed by the caller so that every
// slice of a volume shares one window.
func SliceGray16(vol *nifti.Volume, plane Plane, index, t int, maxIntensity float64) *image.Gray16 {
	w, h, at := sliceDims(vol, plane, index, t)

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.SetGray16(i, j, color.Gray16{Y: ApplyWindowScaling(float64(at(i, j)), maxIntensity)})
		}
	}

	return img
}

// SliceRGBA renders one slice through the given colormap.
func SliceRGBA(vol *nifti.Volume, plane Plane, index, t int, maxIntensity float64, cmap Colormap) *image.RGBA {
	w, h, at := sliceDims(vol, plane, index, t)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			v := float64(at(i, j))
			if v < 0 {
				v = 0
			}
			var norm float64
			if maxIntensity > 0 {
				norm = v / maxIntensity
			}
			img.SetRGBA(i, j, cmap(norm))
		}
	}

	return img
}
