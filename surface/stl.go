package surface

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/carbocation/pfx"

	"github.com/neuroviz/neuroviz"
)

// Binary STL for interchange with mesh tools that do not read VTK. STL is a
// triangle soup with no shared vertices and no scalar data.

const stlHeaderSize = 80

// WriteSTL writes the mesh as binary STL with per-facet normals.
func WriteSTL(w io.Writer, mesh *Mesh) error {
	var header [stlHeaderSize]byte
	copy(header[:], "Binary STL")
	if _, err := w.Write(header[:]); err != nil {
		return pfx.Err(err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(mesh.Faces))); err != nil {
		return pfx.Err(err)
	}

	buf := make([]byte, 50)
	for _, f := range mesh.Faces {
		a, b, c := mesh.Vertices[f[0]], mesh.Vertices[f[1]], mesh.Vertices[f[2]]
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()

		putVector(buf[0:12], n)
		putVector(buf[12:24], a)
		putVector(buf[24:36], b)
		putVector(buf[36:48], c)
		binary.LittleEndian.PutUint16(buf[48:50], 0)

		if _, err := w.Write(buf); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

func putVector(buf []byte, v Vector) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(v.Z)))
}

func getVector(buf []byte) Vector {
	return Vector{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))),
	}
}

// ReadSTL reads binary STL and welds coincident vertices back into a shared
// mesh so the smoothing and component filters can traverse it.
func ReadSTL(r io.Reader) (*Mesh, error) {
	var header [stlHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, neuroviz.DataErrorf("stl: %v", err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, neuroviz.DataErrorf("stl: %v", err)
	}

	mesh := &Mesh{Faces: make([][3]int, 0, count)}
	lookup := make(map[Vector]int)
	index := func(v Vector) int {
		if id, ok := lookup[v]; ok {
			return id
		}
		id := len(mesh.Vertices)
		mesh.Vertices = append(mesh.Vertices, v)
		lookup[v] = id
		return id
	}

	buf := make([]byte, 50)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, neuroviz.DataErrorf("stl: facet %d: %v", i, err)
		}

		// The stored normal is ignored; it is recomputed from the winding
		// when needed.
		a := index(getVector(buf[12:24]))
		b := index(getVector(buf[24:36]))
		c := index(getVector(buf[36:48]))
		if a == b || b == c || a == c {
			continue
		}
		mesh.Faces = append(mesh.Faces, [3]int{a, b, c})
	}

	if len(mesh.Vertices) == 0 {
		return nil, neuroviz.DataErrorf("stl: file contains no facets")
	}

	return mesh, nil
}
