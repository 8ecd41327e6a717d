package surface

import (
	"github.com/theodesp/unionfind"
)

// LargestComponent keeps only the biggest connected piece of the mesh,
// discarding satellite fragments that thresholding and marching cubes leave
// behind. Vertices are renumbered densely; scalars follow their vertices.
func (m *Mesh) LargestComponent() *Mesh {
	if len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return m.Clone()
	}

	uf := unionfind.New(len(m.Vertices))
	for _, f := range m.Faces {
		uf.Union(f[0], f[1])
		uf.Union(f[1], f[2])
	}

	counts := make(map[int]int)
	for i := range m.Vertices {
		if root := uf.Root(i); root >= 0 {
			counts[root]++
		}
	}

	best := -1
	bestCount := -1
	for root, n := range counts {
		if n > bestCount || (n == bestCount && root < best) {
			best = root
			bestCount = n
		}
	}

	remap := make(map[int]int, bestCount)
	out := &Mesh{ScalarName: m.ScalarName}

	for i, v := range m.Vertices {
		if uf.Root(i) != best {
			continue
		}
		remap[i] = len(out.Vertices)
		out.Vertices = append(out.Vertices, v)
		if m.Scalars != nil {
			out.Scalars = append(out.Scalars, m.Scalars[i])
		}
	}

	for _, f := range m.Faces {
		a, okA := remap[f[0]]
		b, okB := remap[f[1]]
		c, okC := remap[f[2]]
		if okA && okB && okC {
			out.Faces = append(out.Faces, [3]int{a, b, c})
		}
	}

	return out
}
