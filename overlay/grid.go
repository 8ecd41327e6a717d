package overlay

import (
	"image"

	"github.com/theodesp/unionfind"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
)

// ClassGrid is one axial plane of class indices in image row order: row 0
// is the top of the rendered picture, matching the slice renderer, so a
// colorized grid lands on a SliceRGBA image without further flipping.
type ClassGrid struct {
	W, H int
	ID   []uint8
}

// AxialClasses reads plane z of a hard segmentation volume, rounding voxel
// values to their class indices.
func AxialClasses(seg *nifti.Volume, z int) (ClassGrid, error) {
	if z < 0 || z >= seg.Nz {
		return ClassGrid{}, neuroviz.DataErrorf("overlay: plane %d outside a volume with %d planes", z, seg.Nz)
	}

	g := ClassGrid{W: seg.Nx, H: seg.Ny, ID: make([]uint8, seg.Nx*seg.Ny)}
	for j := 0; j < g.H; j++ {
		for i := 0; i < g.W; i++ {
			v := seg.At(i, seg.Ny-1-j, z, 0)
			if v < 0 {
				v = 0
			}
			g.ID[j*g.W+i] = uint8(v + 0.5)
		}
	}

	return g, nil
}

// Colorize paints each class with its label color, leaving the background
// transparent. A class index with no label means the segmentation and the
// label set disagree about how many classes were fit, which is worth
// failing loudly over rather than drawing a hole.
func (g ClassGrid) Colorize(labels []Label) (*image.RGBA, error) {
	byID := make(map[uint8]Label, len(labels))
	for _, l := range labels {
		byID[l.ID] = l
	}

	img := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for j := 0; j < g.H; j++ {
		for i := 0; i < g.W; i++ {
			id := g.ID[j*g.W+i]
			l, ok := byID[id]
			if !ok {
				return nil, neuroviz.DataErrorf("overlay: class %d at (%d, %d) has no label; was fast run with a different -n?", id, i, j)
			}
			if l.ID == 0 {
				continue
			}
			img.SetRGBA(i, j, l.Color)
		}
	}

	return img, nil
}

// Counts tallies pixels per class index.
func (g ClassGrid) Counts() map[uint8]int {
	out := make(map[uint8]int)
	for _, id := range g.ID {
		out[id]++
	}

	return out
}

// Regions counts 4-connected components per class index. A clean
// segmentation has a handful of regions per tissue; confetti means the
// smoothing or brain extraction upstream went wrong.
func (g ClassGrid) Regions() map[uint8]int {
	if len(g.ID) == 0 {
		return map[uint8]int{}
	}

	// First pass: provisional labels, unioning whenever the pixel above or
	// to the left shares the class.
	uf := unionfind.New(g.W*g.H + 1)
	labels := make([]int, g.W*g.H)

	next := 1
	for j := 0; j < g.H; j++ {
		for i := 0; i < g.W; i++ {
			idx := j*g.W + i
			id := g.ID[idx]

			up := -1
			if j > 0 && g.ID[idx-g.W] == id {
				up = labels[idx-g.W]
			}
			left := -1
			if i > 0 && g.ID[idx-1] == id {
				left = labels[idx-1]
			}

			switch {
			case up < 0 && left < 0:
				labels[idx] = next
				next++
			case up < 0:
				labels[idx] = left
			case left < 0:
				labels[idx] = up
			default:
				labels[idx] = up
				if up != left {
					uf.Union(up, left)
				}
			}
		}
	}

	// Second pass: distinct roots per class are the component count.
	roots := make(map[uint8]map[int]struct{})
	for idx, lab := range labels {
		root := uf.Root(lab)
		if root < 0 {
			root = lab
		}

		m := roots[g.ID[idx]]
		if m == nil {
			m = make(map[int]struct{})
			roots[g.ID[idx]] = m
		}
		m[root] = struct{}{}
	}

	out := make(map[uint8]int, len(roots))
	for id, m := range roots {
		out[id] = len(m)
	}

	return out
}
