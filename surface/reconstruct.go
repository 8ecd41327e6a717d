package surface

import (
	"github.com/fogleman/mc"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/voxel"
)

// Params holds the reconstruction chain settings. The zero value is not
// useful; start from DefaultParams or from the settings document.
type Params struct {
	ThresholdLow     float64
	ThresholdHigh    float64
	IsovalueFraction float64

	LaplacianIterations int
	LaplacianRelaxation float64

	FillHoleSize float64

	TaubinIterations int
	TaubinPassband   float64
}

func DefaultParams() Params {
	return Params{
		ThresholdLow:        30,
		ThresholdHigh:       60,
		IsovalueFraction:    0.6,
		LaplacianIterations: 100,
		LaplacianRelaxation: 0.1,
		FillHoleSize:        50,
		TaubinIterations:    600,
		TaubinPassband:      0.2,
	}
}

// FromVolume extracts the isosurface of one frame with marching cubes and
// welds the triangle soup into an indexed mesh in world coordinates.
func FromVolume(vol *nifti.Volume, t int, isovalue float64) *Mesh {
	data := make([]float64, vol.NVox())
	base := t * vol.NVox()
	for i := range data {
		data[i] = float64(vol.Data[base+i])
	}

	triangles := mc.MarchingCubesGrid(vol.Nx, vol.Ny, vol.Nz, data, isovalue)

	mesh := &Mesh{}
	index := make(map[mc.Vector]int)

	// Shared cube edges interpolate to bit-identical positions, so exact
	// welding is safe.
	vertexID := func(v mc.Vector) int {
		if id, ok := index[v]; ok {
			return id
		}

		x, y, z := nifti.VoxelToWorld(vol.Affine, v.X, v.Y, v.Z)

		id := len(mesh.Vertices)
		index[v] = id
		mesh.Vertices = append(mesh.Vertices, Vector{X: x, Y: y, Z: z})

		return id
	}

	for _, tri := range triangles {
		a := vertexID(tri.V1)
		b := vertexID(tri.V2)
		c := vertexID(tri.V3)

		if a == b || b == c || a == c {
			continue
		}

		mesh.Faces = append(mesh.Faces, [3]int{a, b, c})
	}

	return mesh
}

// Reconstruct runs the full surface chain on an aligned anatomical volume:
// binary segmentation between the intensity thresholds, marching cubes at a
// fraction of the mask's scalar range, Laplacian relaxation, hole filling,
// fragment removal, and a final shrink-free smoothing pass.
func Reconstruct(vol *nifti.Volume, p Params) (*Mesh, error) {
	mask := voxel.ThresholdBinary(vol, float32(p.ThresholdLow), float32(p.ThresholdHigh))

	min, max := mask.MinMax()
	isovalue := float64(min) + p.IsovalueFraction*float64(max-min)

	mesh := FromVolume(mask, 0, isovalue)
	if mesh.VertexCount() == 0 {
		return nil, neuroviz.DataErrorf("no surface was generated; check thresholds %g-%g and isovalue %g",
			p.ThresholdLow, p.ThresholdHigh, isovalue)
	}

	mesh = mesh.LaplacianSmooth(p.LaplacianIterations, p.LaplacianRelaxation)
	mesh = mesh.FillHoles(p.FillHoleSize)
	mesh = mesh.LargestComponent()
	mesh = mesh.TaubinSmooth(p.TaubinIterations, p.TaubinPassband)

	return mesh, nil
}
