// Package surface reconstructs and edits triangulated cortical meshes. The
// reconstruction chain mirrors the rest of the pipeline's file contract:
// a binary brain mask comes in as a volume, a cleaned world-space mesh goes
// out as VTK polydata, optionally carrying one per-vertex scalar field.
package surface

import (
	"math"
)

type Vector struct {
	X, Y, Z float64
}

func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector) Sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vector) Scale(s float64) Vector { return Vector{v.X * s, v.Y * s, v.Z * s} }

func (v Vector) Dot(o Vector) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vector) Normalize() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}

	return v.Scale(1 / l)
}

// Mesh is an indexed triangle mesh in world coordinates. Scalars, when
// non-nil, holds one value per vertex under ScalarName; the functional
// mapper fills it.
type Mesh struct {
	Vertices   []Vector
	Faces      [][3]int
	Scalars    []float64
	ScalarName string
}

func (m *Mesh) VertexCount() int { return len(m.Vertices) }
func (m *Mesh) FaceCount() int   { return len(m.Faces) }

func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:   append([]Vector(nil), m.Vertices...),
		Faces:      append([][3]int(nil), m.Faces...),
		ScalarName: m.ScalarName,
	}
	if m.Scalars != nil {
		out.Scalars = append([]float64(nil), m.Scalars...)
	}

	return out
}

func (m *Mesh) BoundingBox() (min, max Vector) {
	if len(m.Vertices) == 0 {
		return Vector{}, Vector{}
	}

	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		min.Z = math.Min(min.Z, v.Z)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
		max.Z = math.Max(max.Z, v.Z)
	}

	return min, max
}

func (m *Mesh) Center() Vector {
	min, max := m.BoundingBox()

	return min.Add(max).Scale(0.5)
}

func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for _, f := range m.Faces {
		a := m.Vertices[f[0]]
		b := m.Vertices[f[1]]
		c := m.Vertices[f[2]]
		area += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	}

	return area
}

// VertexNormals returns area-weighted normals, normalized per vertex.
func (m *Mesh) VertexNormals() []Vector {
	normals := make([]Vector, len(m.Vertices))

	for _, f := range m.Faces {
		a := m.Vertices[f[0]]
		b := m.Vertices[f[1]]
		c := m.Vertices[f[2]]

		// Cross product length is twice the face area, so this weights by
		// area for free.
		n := b.Sub(a).Cross(c.Sub(a))

		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}

	for i := range normals {
		normals[i] = normals[i].Normalize()
	}

	return normals
}

type edge [2]int

func orderedEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}

	return edge{a, b}
}

// edgeFaces counts incident faces per undirected edge.
func (m *Mesh) edgeFaces() map[edge]int {
	counts := make(map[edge]int, 3*len(m.Faces)/2)
	for _, f := range m.Faces {
		counts[orderedEdge(f[0], f[1])]++
		counts[orderedEdge(f[1], f[2])]++
		counts[orderedEdge(f[2], f[0])]++
	}

	return counts
}

// BoundaryEdges returns edges with exactly one incident face. A closed
// manifold has none.
func (m *Mesh) BoundaryEdges() []edge {
	var out []edge
	for e, n := range m.edgeFaces() {
		if n == 1 {
			out = append(out, e)
		}
	}

	return out
}

// IsManifold reports whether every edge joins at most two faces. Boundary
// edges are allowed; non-manifold fins are not.
func (m *Mesh) IsManifold() bool {
	for _, n := range m.edgeFaces() {
		if n > 2 {
			return false
		}
	}

	return true
}

// neighbors builds the vertex adjacency lists used by the smoothers.
func (m *Mesh) neighbors() [][]int {
	seen := make(map[edge]struct{}, 3*len(m.Faces)/2)
	adj := make([][]int, len(m.Vertices))

	addEdge := func(a, b int) {
		e := orderedEdge(a, b)
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}

	for _, f := range m.Faces {
		addEdge(f[0], f[1])
		addEdge(f[1], f[2])
		addEdge(f[2], f[0])
	}

	return adj
}
