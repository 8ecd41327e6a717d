package nifti

import (
	"github.com/neuroviz/neuroviz"
)

// Volume is a decoded 3D or 4D voxel grid. Data is stored as float32 with
// any header scaling already applied, x varying fastest, then y, z, and
// finally time.
type Volume struct {
	Nx, Ny, Nz, Nt int

	Data []float32

	// PixDim holds the spatial grid spacing in mm for x, y, z.
	PixDim [3]float32

	// TR is the repetition time in seconds. Zero for anatomical volumes.
	TR float64

	// Affine maps voxel indices (i, j, k, 1) to world coordinates in mm.
	Affine [4][4]float64

	// Hdr preserves the header the volume was loaded with so that derived
	// volumes can be written without losing provenance fields. Synthetic
	// volumes may leave it zero; Save fills in the required fields.
	Hdr Header
}

// NewVolume allocates a zero-filled volume with an identity affine scaled by
// the pixel dimensions.
func NewVolume(nx, ny, nz, nt int, pixdim [3]float32) *Volume {
	if nt < 1 {
		nt = 1
	}

	v := &Volume{
		Nx:     nx,
		Ny:     ny,
		Nz:     nz,
		Nt:     nt,
		PixDim: pixdim,
		Data:   make([]float32, nx*ny*nz*nt),
	}

	for i := 0; i < 3; i++ {
		v.Affine[i][i] = float64(pixdim[i])
	}
	v.Affine[3][3] = 1

	return v
}

// NVox reports the number of voxels in a single timepoint.
func (v *Volume) NVox() int { return v.Nx * v.Ny * v.Nz }

// Is4D reports whether the volume carries a time axis.
func (v *Volume) Is4D() bool { return v.Nt > 1 }

func (v *Volume) index(x, y, z, t int) int {
	return ((t*v.Nz+z)*v.Ny+y)*v.Nx + x
}

// At returns the voxel value at (x, y, z) for timepoint t.
func (v *Volume) At(x, y, z, t int) float32 {
	return v.Data[v.index(x, y, z, t)]
}

// SetAt stores a voxel value at (x, y, z) for timepoint t.
func (v *Volume) SetAt(x, y, z, t int, value float32) {
	v.Data[v.index(x, y, z, t)] = value
}

// InBounds reports whether the voxel coordinate lies inside the grid.
func (v *Volume) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.Nx && y >= 0 && y < v.Ny && z >= 0 && z < v.Nz
}

// VolumeAt returns the 3D volume for a single timepoint. The returned volume
// shares the backing array with v.
func (v *Volume) VolumeAt(t int) (*Volume, error) {
	if t < 0 || t >= v.Nt {
		return nil, neuroviz.DataErrorf("nifti: timepoint %d out of range 0..%d", t, v.Nt-1)
	}

	n := v.NVox()
	out := &Volume{
		Nx:     v.Nx,
		Ny:     v.Ny,
		Nz:     v.Nz,
		Nt:     1,
		Data:   v.Data[t*n : (t+1)*n],
		PixDim: v.PixDim,
		TR:     0,
		Affine: v.Affine,
		Hdr:    v.Hdr,
	}

	return out, nil
}

// Clone returns a deep copy, sharing nothing with v.
func (v *Volume) Clone() *Volume {
	out := *v
	out.Data = make([]float32, len(v.Data))
	copy(out.Data, v.Data)

	return &out
}

// MinMax scans the full data array.
func (v *Volume) MinMax() (min, max float32) {
	if len(v.Data) == 0 {
		return 0, 0
	}

	min, max = v.Data[0], v.Data[0]
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}

	return min, max
}

// TimeSeriesAt returns the voxel's value at every timepoint.
func (v *Volume) TimeSeriesAt(x, y, z int) []float32 {
	out := make([]float32, v.Nt)
	for t := 0; t < v.Nt; t++ {
		out[t] = v.At(x, y, z, t)
	}

	return out
}

// AxialPositive reports whether the third spatial axis points superiorly,
// the expected orientation for an axially acquired scan.
func (v *Volume) AxialPositive() bool {
	return v.Affine[2][2] > 0
}

// SameGrid reports whether two volumes share dimensions and spacing, the
// precondition for voxelwise comparison between them.
func (v *Volume) SameGrid(other *Volume) bool {
	return v.Nx == other.Nx && v.Ny == other.Ny && v.Nz == other.Nz &&
		v.PixDim == other.PixDim
}
