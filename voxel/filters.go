// Package voxel implements the intensity filters of the anatomical
// preprocessing chain: bias field correction, rescaling, adaptive histogram
// equalization, and edge-preserving bilateral smoothing. Filters never
// mutate their input; each returns a new volume on the same grid.
package voxel

import (
	"math"

	"github.com/neuroviz/neuroviz/nifti"
)

// NeedsRescale reports whether any voxel falls outside [lo, hi].
func NeedsRescale(vol *nifti.Volume, lo, hi float32) bool {
	min, max := vol.MinMax()

	return min < lo || max > hi
}

// Rescale maps intensities linearly onto [lo, hi]. A constant volume maps
// to lo everywhere.
func Rescale(vol *nifti.Volume, lo, hi float32) *nifti.Volume {
	out := vol.Clone()

	min, max := vol.MinMax()
	if max <= min {
		for i := range out.Data {
			out.Data[i] = lo
		}
		return out
	}

	scale := (hi - lo) / (max - min)
	for i, v := range vol.Data {
		out.Data[i] = (v-min)*scale + lo
	}

	return out
}

// ThresholdBinary produces a mask: 1 inside [lo, hi], 0 outside.
func ThresholdBinary(vol *nifti.Volume, lo, hi float32) *nifti.Volume {
	out := vol.Clone()

	for i, v := range vol.Data {
		if v >= lo && v <= hi {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}

	return out
}

// BiasCorrect removes the low-frequency intensity bias that scanner coils
// impose on T1 images. The field is estimated by heavily smoothing a
// shrunken copy of the volume, then divided out so that the volume-wide
// mean intensity is preserved. Each frame of a 4D series is corrected
// independently.
func BiasCorrect(vol *nifti.Volume, shrink int) *nifti.Volume {
	if shrink < 1 {
		shrink = 1
	}

	out := vol.Clone()

	for t := 0; t < vol.Nt; t++ {
		correctFrame(vol, out, t, shrink)
	}

	return out
}

func correctFrame(vol, out *nifti.Volume, t, shrink int) {
	field := downsample(vol, t, shrink)

	// Three box passes approximate a wide Gaussian.
	radius := field.maxDim() / 8
	if radius < 1 {
		radius = 1
	}
	for pass := 0; pass < 3; pass++ {
		field.blur(radius)
	}

	mean := field.mean()
	if mean <= 0 {
		return
	}
	floor := 0.01 * mean

	for z := 0; z < vol.Nz; z++ {
		for y := 0; y < vol.Ny; y++ {
			for x := 0; x < vol.Nx; x++ {
				b := field.sample(
					(float64(x)+0.5)/float64(shrink)-0.5,
					(float64(y)+0.5)/float64(shrink)-0.5,
					(float64(z)+0.5)/float64(shrink)-0.5,
				)
				if b < floor {
					b = floor
				}
				v := float64(vol.At(x, y, z, t)) * mean / b
				out.SetAt(x, y, z, t, float32(v))
			}
		}
	}
}

// Bilateral smooths while preserving edges: each voxel becomes a weighted
// mean of its neighborhood, down-weighting neighbors that are spatially far
// (domainSigma, in the volume's physical units) or very different in
// intensity (rangeSigma). Matches the usual definition with Gaussian
// domain and range kernels truncated at two sigma.
func Bilateral(vol *nifti.Volume, domainSigma, rangeSigma float64) *nifti.Volume {
	out := vol.Clone()
	if domainSigma <= 0 || rangeSigma <= 0 {
		return out
	}

	radius := [3]int{}
	for axis := 0; axis < 3; axis++ {
		spacing := float64(vol.PixDim[axis])
		if spacing <= 0 {
			spacing = 1
		}
		r := int(math.Ceil(2 * domainSigma / spacing))
		if r < 1 {
			r = 1
		}
		radius[axis] = r
	}

	invDomain := 1 / (2 * domainSigma * domainSigma)
	invRange := 1 / (2 * rangeSigma * rangeSigma)

	for t := 0; t < vol.Nt; t++ {
		for z := 0; z < vol.Nz; z++ {
			for y := 0; y < vol.Ny; y++ {
				for x := 0; x < vol.Nx; x++ {
					center := float64(vol.At(x, y, z, t))

					var sum, weight float64
					for dz := -radius[2]; dz <= radius[2]; dz++ {
						zz := z + dz
						if zz < 0 || zz >= vol.Nz {
							continue
						}
						for dy := -radius[1]; dy <= radius[1]; dy++ {
							yy := y + dy
							if yy < 0 || yy >= vol.Ny {
								continue
							}
							for dx := -radius[0]; dx <= radius[0]; dx++ {
								xx := x + dx
								if xx < 0 || xx >= vol.Nx {
									continue
								}

								v := float64(vol.At(xx, yy, zz, t))
								d2 := sq(float64(dx)*float64(vol.PixDim[0])) +
									sq(float64(dy)*float64(vol.PixDim[1])) +
									sq(float64(dz)*float64(vol.PixDim[2]))
								w := math.Exp(-d2*invDomain - sq(v-center)*invRange)

								sum += w * v
								weight += w
							}
						}
					}

					if weight > 0 {
						out.SetAt(x, y, z, t, float32(sum/weight))
					}
				}
			}
		}
	}

	return out
}

func sq(v float64) float64 { return v * v }

// grid is a small float64 lattice used for bias field estimation.
type grid struct {
	nx, ny, nz int
	data       []float64
}

func (g *grid) at(x, y, z int) float64 {
	return g.data[(z*g.ny+y)*g.nx+x]
}

func (g *grid) set(x, y, z int, v float64) {
	g.data[(z*g.ny+y)*g.nx+x] = v
}

func (g *grid) maxDim() int {
	n := g.nx
	if g.ny > n {
		n = g.ny
	}
	if g.nz > n {
		n = g.nz
	}

	return n
}

func (g *grid) mean() float64 {
	var sum float64
	for _, v := range g.data {
		sum += v
	}

	return sum / float64(len(g.data))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// blur applies one box pass of the given radius along each axis, with
// edge replication.
func (g *grid) blur(radius int) {
	tmp := make([]float64, len(g.data))

	blurAxis := func(n int, at func(i, j, k int) float64, set func(i, j, k int, v float64), nj, nk int) {
		for k := 0; k < nk; k++ {
			for j := 0; j < nj; j++ {
				for i := 0; i < n; i++ {
					var sum float64
					for d := -radius; d <= radius; d++ {
						sum += at(clampInt(i+d, 0, n-1), j, k)
					}
					set(i, j, k, sum/float64(2*radius+1))
				}
			}
		}
	}

	// x axis: data -> tmp
	blurAxis(g.nx,
		func(i, j, k int) float64 { return g.data[(k*g.ny+j)*g.nx+i] },
		func(i, j, k int, v float64) { tmp[(k*g.ny+j)*g.nx+i] = v },
		g.ny, g.nz)

	// y axis: tmp -> data
	blurAxis(g.ny,
		func(i, j, k int) float64 { return tmp[(k*g.ny+i)*g.nx+j] },
		func(i, j, k int, v float64) { g.data[(k*g.ny+i)*g.nx+j] = v },
		g.nx, g.nz)

	// z axis: data -> tmp, then copy back
	blurAxis(g.nz,
		func(i, j, k int) float64 { return g.data[(i*g.ny+j)*g.nx+k] },
		func(i, j, k int, v float64) { tmp[(i*g.ny+j)*g.nx+k] = v },
		g.nx, g.ny)

	copy(g.data, tmp)
}

// sample reads the grid at a fractional position with trilinear
// interpolation, clamping to the boundary.
func (g *grid) sample(x, y, z float64) float64 {
	x0 := clampInt(int(math.Floor(x)), 0, g.nx-1)
	y0 := clampInt(int(math.Floor(y)), 0, g.ny-1)
	z0 := clampInt(int(math.Floor(z)), 0, g.nz-1)
	x1 := clampInt(x0+1, 0, g.nx-1)
	y1 := clampInt(y0+1, 0, g.ny-1)
	z1 := clampInt(z0+1, 0, g.nz-1)

	fx := clampFrac(x - float64(x0))
	fy := clampFrac(y - float64(y0))
	fz := clampFrac(z - float64(z0))

	c00 := g.at(x0, y0, z0)*(1-fx) + g.at(x1, y0, z0)*fx
	c10 := g.at(x0, y1, z0)*(1-fx) + g.at(x1, y1, z0)*fx
	c01 := g.at(x0, y0, z1)*(1-fx) + g.at(x1, y0, z1)*fx
	c11 := g.at(x0, y1, z1)*(1-fx) + g.at(x1, y1, z1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy

	return c0*(1-fz) + c1*fz
}

func clampFrac(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}

	return f
}

// downsample mean-pools one frame of the volume by an integer factor.
func downsample(vol *nifti.Volume, t, shrink int) *grid {
	nx := (vol.Nx + shrink - 1) / shrink
	ny := (vol.Ny + shrink - 1) / shrink
	nz := (vol.Nz + shrink - 1) / shrink

	g := &grid{nx: nx, ny: ny, nz: nz, data: make([]float64, nx*ny*nz)}

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				var sum float64
				var n int
				for dz := 0; dz < shrink; dz++ {
					zz := z*shrink + dz
					if zz >= vol.Nz {
						break
					}
					for dy := 0; dy < shrink; dy++ {
						yy := y*shrink + dy
						if yy >= vol.Ny {
							break
						}
						for dx := 0; dx < shrink; dx++ {
							xx := x*shrink + dx
							if xx >= vol.Nx {
								break
							}
							sum += float64(vol.At(xx, yy, zz, t))
							n++
						}
					}
				}
				if n > 0 {
					g.set(x, y, z, sum/float64(n))
				}
			}
		}
	}

	return g
}
