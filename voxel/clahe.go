package voxel

import (
	"math"

	"github.com/neuroviz/neuroviz/nifti"
)

const (
	claheBins  = 256
	claheTiles = 8
)

// AdaptiveEqualize applies contrast-limited adaptive histogram equalization
// slice by slice along the axial axis. Each slice is divided into a tile
// grid; tile histograms are clipped at a fraction clip of the tile's pixel
// count before equalization, and per-pixel mappings are interpolated
// bilinearly between neighboring tiles to avoid tile seams.
func AdaptiveEqualize(vol *nifti.Volume, clip float64) *nifti.Volume {
	out := vol.Clone()
	if clip <= 0 {
		return out
	}

	for t := 0; t < vol.Nt; t++ {
		for z := 0; z < vol.Nz; z++ {
			equalizeSlice(vol, out, z, t, clip)
		}
	}

	return out
}

func equalizeSlice(vol, out *nifti.Volume, z, t int, clip float64) {
	nx, ny := vol.Nx, vol.Ny

	min := vol.At(0, 0, z, t)
	max := min
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := vol.At(x, y, z, t)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if max <= min {
		return
	}

	tilesX := claheTiles
	if tilesX > nx {
		tilesX = nx
	}
	tilesY := claheTiles
	if tilesY > ny {
		tilesY = ny
	}

	binOf := func(v float32) int {
		b := int(float64(v-min) / float64(max-min) * (claheBins - 1))
		return clampInt(b, 0, claheBins-1)
	}

	tileW := float64(nx) / float64(tilesX)
	tileH := float64(ny) / float64(tilesY)

	// One equalization mapping per tile, bin index to output intensity.
	mappings := make([][][claheBins]float32, tilesY)
	for ty := 0; ty < tilesY; ty++ {
		mappings[ty] = make([][claheBins]float32, tilesX)
		for tx := 0; tx < tilesX; tx++ {
			x0 := int(float64(tx) * tileW)
			x1 := int(float64(tx+1) * tileW)
			y0 := int(float64(ty) * tileH)
			y1 := int(float64(ty+1) * tileH)
			if tx == tilesX-1 {
				x1 = nx
			}
			if ty == tilesY-1 {
				y1 = ny
			}

			var hist [claheBins]float64
			total := float64((x1 - x0) * (y1 - y0))
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[binOf(vol.At(x, y, z, t))]++
				}
			}

			limit := clip * total
			if limit < 1 {
				limit = 1
			}
			var excess float64
			for b := range hist {
				if hist[b] > limit {
					excess += hist[b] - limit
					hist[b] = limit
				}
			}
			bonus := excess / claheBins
			for b := range hist {
				hist[b] += bonus
			}

			var cum float64
			for b := range hist {
				cum += hist[b]
				mappings[ty][tx][b] = min + float32(cum/total)*(max-min)
			}
		}
	}

	tileOf := func(pos, size float64, tiles int) (int, int, float64) {
		u := pos/size - 0.5
		i0 := int(math.Floor(u))
		f := u - float64(i0)
		i0 = clampInt(i0, 0, tiles-1)
		i1 := clampInt(i0+1, 0, tiles-1)
		return i0, i1, clampFrac(f)
	}

	for y := 0; y < ny; y++ {
		ty0, ty1, fy := tileOf(float64(y)+0.5, tileH, tilesY)
		for x := 0; x < nx; x++ {
			tx0, tx1, fx := tileOf(float64(x)+0.5, tileW, tilesX)

			b := binOf(vol.At(x, y, z, t))
			top := float64(mappings[ty0][tx0][b])*(1-fx) + float64(mappings[ty0][tx1][b])*fx
			bottom := float64(mappings[ty1][tx0][b])*(1-fx) + float64(mappings[ty1][tx1][b])*fx

			out.SetAt(x, y, z, t, float32(top*(1-fy)+bottom*fy))
		}
	}
}
