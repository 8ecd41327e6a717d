// Package fmrimap projects functional activation volumes onto reconstructed
// cortical surfaces. Every vertex samples the BOLD volume at its world
// position; vertices that fall outside the scanned field of view keep a
// zero activation.
package fmrimap

import (
	"math"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/surface"
)

// ScalarName is the array name carried by mapped surfaces, kept byte for
// byte compatible with files produced by earlier versions of the pipeline.
const ScalarName = "fMRI Activations"

const (
	MappingNearest   = "nearest"
	MappingTrilinear = "trilinear"

	StatisticTimepoint = "timepoint"
	StatisticMean      = "mean"
)

// Options selects how the 4D series collapses to one value per voxel and
// how voxels are sampled at vertex positions.
type Options struct {
	Mapping   string
	Statistic string
	Timepoint int
}

// collapse reduces the time axis to a single frame according to the
// statistic. The volume keeps its grid and affine so world positions still
// address the same anatomy.
func collapse(vol *nifti.Volume, opts Options) (*nifti.Volume, error) {
	switch opts.Statistic {
	case StatisticTimepoint, "":
		if opts.Timepoint < 0 || opts.Timepoint >= vol.Nt {
			return nil, neuroviz.DataErrorf("fmrimap: timepoint %d outside series of %d frames", opts.Timepoint, vol.Nt)
		}

		return vol.VolumeAt(opts.Timepoint)

	case StatisticMean:
		frame, err := vol.VolumeAt(0)
		if err != nil {
			return nil, err
		}
		if vol.Nt == 1 {
			return frame, nil
		}

		scale := 1 / float32(vol.Nt)
		for i := range frame.Data {
			var sum float32
			for t := 0; t < vol.Nt; t++ {
				sum += vol.Data[t*vol.NVox()+i]
			}
			frame.Data[i] = sum * scale
		}

		return frame, nil
	}

	return nil, neuroviz.ConfigErrorf("fmrimap: unknown statistic %q", opts.Statistic)
}

// sampleNearest reads the voxel whose center is closest to the continuous
// voxel coordinate, or 0 outside the grid.
func sampleNearest(frame *nifti.Volume, i, j, k float64) float64 {
	x := int(math.Round(i))
	y := int(math.Round(j))
	z := int(math.Round(k))
	if !frame.InBounds(x, y, z) {
		return 0
	}

	return float64(frame.At(x, y, z, 0))
}

// sampleTrilinear interpolates between the eight surrounding voxel centers.
// Positions outside the center lattice fall back to 0 rather than
// extrapolating.
func sampleTrilinear(frame *nifti.Volume, i, j, k float64) float64 {
	if i < 0 || j < 0 || k < 0 ||
		i > float64(frame.Nx-1) || j > float64(frame.Ny-1) || k > float64(frame.Nz-1) {
		return 0
	}

	x0, y0, z0 := int(i), int(j), int(k)
	x1, y1, z1 := x0, y0, z0
	if x1 < frame.Nx-1 {
		x1++
	}
	if y1 < frame.Ny-1 {
		y1++
	}
	if z1 < frame.Nz-1 {
		z1++
	}
	fx, fy, fz := i-float64(x0), j-float64(y0), k-float64(z0)

	at := func(x, y, z int) float64 { return float64(frame.At(x, y, z, 0)) }

	c00 := at(x0, y0, z0)*(1-fx) + at(x1, y0, z0)*fx
	c10 := at(x0, y1, z0)*(1-fx) + at(x1, y1, z0)*fx
	c01 := at(x0, y0, z1)*(1-fx) + at(x1, y0, z1)*fx
	c11 := at(x0, y1, z1)*(1-fx) + at(x1, y1, z1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy

	return c0*(1-fz) + c1*fz
}

// Map samples the functional volume at every vertex of the mesh and returns
// a copy carrying the activations as its scalar field.
func Map(mesh *surface.Mesh, vol *nifti.Volume, opts Options) (*surface.Mesh, error) {
	frame, err := collapse(vol, opts)
	if err != nil {
		return nil, err
	}

	inv, err := nifti.InvertAffine(frame.Affine)
	if err != nil {
		return nil, neuroviz.DataErrorf("fmrimap: functional affine is singular: %v", err)
	}

	var sample func(*nifti.Volume, float64, float64, float64) float64
	switch opts.Mapping {
	case MappingNearest, "":
		sample = sampleNearest
	case MappingTrilinear:
		sample = sampleTrilinear
	default:
		return nil, neuroviz.ConfigErrorf("fmrimap: unknown mapping %q", opts.Mapping)
	}

	out := mesh.Clone()
	out.ScalarName = ScalarName
	out.Scalars = make([]float64, len(out.Vertices))
	for idx, v := range out.Vertices {
		i, j, k := nifti.ApplyAffine(inv, v.X, v.Y, v.Z)
		out.Scalars[idx] = sample(frame, i, j, k)
	}

	return out, nil
}

// Coverage reports the fraction of vertices that landed inside the
// functional field of view, a quick sanity figure for the run report.
func Coverage(mesh *surface.Mesh, vol *nifti.Volume) float64 {
	if len(mesh.Vertices) == 0 {
		return 0
	}

	inv, err := nifti.InvertAffine(vol.Affine)
	if err != nil {
		return 0
	}

	inside := 0
	for _, v := range mesh.Vertices {
		i, j, k := nifti.ApplyAffine(inv, v.X, v.Y, v.Z)
		x := int(math.Round(i))
		y := int(math.Round(j))
		z := int(math.Round(k))
		if vol.InBounds(x, y, z) {
			inside++
		}
	}

	return float64(inside) / float64(len(mesh.Vertices))
}
