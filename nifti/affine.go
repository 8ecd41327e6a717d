package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroviz/neuroviz"
)

// AffineFromHeader derives the voxel-to-world transform, preferring the
// sform, then the qform, then a plain pixdim diagonal.
func AffineFromHeader(hdr Header) [4][4]float64 {
	if hdr.SFormCode > 0 {
		var out [4][4]float64
		for col := 0; col < 4; col++ {
			out[0][col] = float64(hdr.SRowX[col])
			out[1][col] = float64(hdr.SRowY[col])
			out[2][col] = float64(hdr.SRowZ[col])
		}
		out[3][3] = 1

		return out
	}

	if hdr.QFormCode > 0 {
		return affineFromQuaternion(hdr)
	}

	var out [4][4]float64
	for i := 0; i < 3; i++ {
		d := float64(hdr.PixDim[i+1])
		if d == 0 {
			d = 1
		}
		out[i][i] = d
	}
	out[3][3] = 1

	return out
}

// affineFromQuaternion follows the qform reconstruction from nifti1.h: the
// rotation comes from the unit quaternion (a, b, c, d), columns are scaled
// by the grid spacing, and pixdim[0] carries the handedness as qfac.
func affineFromQuaternion(hdr Header) [4][4]float64 {
	b := float64(hdr.QuaternB)
	c := float64(hdr.QuaternC)
	d := float64(hdr.QuaternD)

	aSq := 1.0 - (b*b + c*c + d*d)
	var a float64
	if aSq > 0 {
		a = math.Sqrt(aSq)
	}

	qfac := 1.0
	if hdr.PixDim[0] < 0 {
		qfac = -1.0
	}

	dx := float64(hdr.PixDim[1])
	dy := float64(hdr.PixDim[2])
	dz := float64(hdr.PixDim[3]) * qfac

	var out [4][4]float64
	out[0][0] = (a*a + b*b - c*c - d*d) * dx
	out[0][1] = (2*b*c - 2*a*d) * dy
	out[0][2] = (2*b*d + 2*a*c) * dz
	out[1][0] = (2*b*c + 2*a*d) * dx
	out[1][1] = (a*a + c*c - b*b - d*d) * dy
	out[1][2] = (2*c*d - 2*a*b) * dz
	out[2][0] = (2*b*d - 2*a*c) * dx
	out[2][1] = (2*c*d + 2*a*b) * dy
	out[2][2] = (a*a + d*d - c*c - b*b) * dz

	out[0][3] = float64(hdr.QOffsetX)
	out[1][3] = float64(hdr.QOffsetY)
	out[2][3] = float64(hdr.QOffsetZ)
	out[3][3] = 1

	return out
}

// ApplyAffine transforms one homogeneous coordinate. Pass the volume affine
// to go voxel to world, or its inverse for the opposite direction.
func ApplyAffine(affine [4][4]float64, a, b, c float64) (x, y, z float64) {
	x = affine[0][0]*a + affine[0][1]*b + affine[0][2]*c + affine[0][3]
	y = affine[1][0]*a + affine[1][1]*b + affine[1][2]*c + affine[1][3]
	z = affine[2][0]*a + affine[2][1]*b + affine[2][2]*c + affine[2][3]

	return x, y, z
}

// VoxelToWorld applies the affine to a voxel coordinate.
func VoxelToWorld(affine [4][4]float64, i, j, k float64) (x, y, z float64) {
	return ApplyAffine(affine, i, j, k)
}

// InvertAffine computes the world-to-voxel transform.
func InvertAffine(affine [4][4]float64) ([4][4]float64, error) {
	flat := make([]float64, 0, 16)
	for _, row := range affine {
		flat = append(flat, row[:]...)
	}

	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, flat)); err != nil {
		return [4][4]float64{}, neuroviz.DataErrorf("nifti: affine is singular: %v", err)
	}

	var out [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = inv.At(i, j)
		}
	}

	return out, nil
}
