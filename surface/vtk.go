package surface

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/neuroviz/neuroviz"
)

// Legacy ASCII VTK polydata, the exchange format between the reconstruction
// stage, the mapper, and the viewer. Only what those stages need is
// supported: POINTS, triangular POLYGONS, and one optional POINT_DATA
// scalar array.

const vtkVersionLine = "# vtk DataFile Version 3.0"

// encodeVTKName escapes spaces the way VTK writers do, so array names like
// "fMRI Activations" survive the token-based format.
func encodeVTKName(name string) string {
	return strings.ReplaceAll(name, " ", "%20")
}

func decodeVTKName(name string) string {
	return strings.ReplaceAll(name, "%20", " ")
}

// WriteVTK writes the mesh as legacy ASCII polydata. The scalar array, when
// present, is emitted as POINT_DATA under the mesh's ScalarName.
func WriteVTK(w io.Writer, mesh *Mesh, title string) error {
	bw := bufio.NewWriter(w)

	if title == "" {
		title = "vtk output"
	}

	fmt.Fprintln(bw, vtkVersionLine)
	fmt.Fprintln(bw, title)
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET POLYDATA")

	fmt.Fprintf(bw, "POINTS %d float\n", len(mesh.Vertices))
	for _, v := range mesh.Vertices {
		fmt.Fprintf(bw, "%g %g %g\n", v.X, v.Y, v.Z)
	}

	fmt.Fprintf(bw, "POLYGONS %d %d\n", len(mesh.Faces), 4*len(mesh.Faces))
	for _, f := range mesh.Faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}

	if mesh.Scalars != nil {
		name := mesh.ScalarName
		if name == "" {
			name = "scalars"
		}

		fmt.Fprintf(bw, "POINT_DATA %d\n", len(mesh.Scalars))
		fmt.Fprintf(bw, "SCALARS %s float 1\n", encodeVTKName(name))
		fmt.Fprintln(bw, "LOOKUP_TABLE default")
		for _, s := range mesh.Scalars {
			fmt.Fprintf(bw, "%g\n", s)
		}
	}

	return pfx.Err(bw.Flush())
}

type vtkScanner struct {
	s *bufio.Scanner
}

func (v *vtkScanner) next() (string, error) {
	if !v.s.Scan() {
		if err := v.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return v.s.Text(), nil
}

func (v *vtkScanner) nextInt() (int, error) {
	tok, err := v.next()
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(tok)
}

func (v *vtkScanner) nextFloat() (float64, error) {
	tok, err := v.next()
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(tok, 64)
}

// ReadVTK parses legacy ASCII polydata with triangular polygons.
func ReadVTK(r io.Reader) (*Mesh, error) {
	br := bufio.NewReader(r)

	// Header: version comment, title, format, dataset kind.
	version, err := br.ReadString('\n')
	if err != nil {
		return nil, neuroviz.DataErrorf("vtk: %v", err)
	}
	if !strings.HasPrefix(version, "# vtk DataFile") {
		return nil, neuroviz.DataErrorf("vtk: not a VTK data file")
	}

	if _, err := br.ReadString('\n'); err != nil { // title, ignored
		return nil, neuroviz.DataErrorf("vtk: %v", err)
	}

	format, err := br.ReadString('\n')
	if err != nil {
		return nil, neuroviz.DataErrorf("vtk: %v", err)
	}
	if strings.TrimSpace(format) != "ASCII" {
		return nil, neuroviz.DataErrorf("vtk: only ASCII files are supported, got %q", strings.TrimSpace(format))
	}

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	scan := &vtkScanner{s: sc}

	kind, err := scan.next()
	if err != nil {
		return nil, neuroviz.DataErrorf("vtk: %v", err)
	}
	if kind != "DATASET" {
		return nil, neuroviz.DataErrorf("vtk: expected DATASET, got %q", kind)
	}
	dataset, err := scan.next()
	if err != nil {
		return nil, neuroviz.DataErrorf("vtk: %v", err)
	}
	if dataset != "POLYDATA" {
		return nil, neuroviz.DataErrorf("vtk: only POLYDATA is supported, got %q", dataset)
	}

	mesh := &Mesh{}

	for {
		section, err := scan.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, neuroviz.DataErrorf("vtk: %v", err)
		}

		switch section {
		case "POINTS":
			n, err := scan.nextInt()
			if err != nil {
				return nil, neuroviz.DataErrorf("vtk: bad POINTS count: %v", err)
			}
			if _, err := scan.next(); err != nil { // data type, ignored
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}

			mesh.Vertices = make([]Vector, n)
			for i := 0; i < n; i++ {
				var v Vector
				if v.X, err = scan.nextFloat(); err == nil {
					if v.Y, err = scan.nextFloat(); err == nil {
						v.Z, err = scan.nextFloat()
					}
				}
				if err != nil {
					return nil, neuroviz.DataErrorf("vtk: bad point %d: %v", i, err)
				}
				mesh.Vertices[i] = v
			}

		case "POLYGONS":
			n, err := scan.nextInt()
			if err != nil {
				return nil, neuroviz.DataErrorf("vtk: bad POLYGONS count: %v", err)
			}
			if _, err := scan.nextInt(); err != nil { // total size, ignored
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}

			mesh.Faces = make([][3]int, 0, n)
			for i := 0; i < n; i++ {
				verts, err := scan.nextInt()
				if err != nil {
					return nil, neuroviz.DataErrorf("vtk: bad polygon %d: %v", i, err)
				}
				if verts != 3 {
					return nil, neuroviz.DataErrorf("vtk: polygon %d has %d vertices; only triangles are supported", i, verts)
				}

				var f [3]int
				for j := 0; j < 3; j++ {
					if f[j], err = scan.nextInt(); err != nil {
						return nil, neuroviz.DataErrorf("vtk: bad polygon %d: %v", i, err)
					}
					if f[j] < 0 || f[j] >= len(mesh.Vertices) {
						return nil, neuroviz.DataErrorf("vtk: polygon %d references vertex %d of %d", i, f[j], len(mesh.Vertices))
					}
				}
				mesh.Faces = append(mesh.Faces, f)
			}

		case "POINT_DATA":
			n, err := scan.nextInt()
			if err != nil {
				return nil, neuroviz.DataErrorf("vtk: bad POINT_DATA count: %v", err)
			}
			if n != len(mesh.Vertices) {
				return nil, neuroviz.DataErrorf("vtk: POINT_DATA count %d does not match %d points", n, len(mesh.Vertices))
			}

		case "SCALARS":
			name, err := scan.next()
			if err != nil {
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}
			if _, err := scan.next(); err != nil { // data type, ignored
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}

			// The component count is optional; the next token is either a
			// number or the LOOKUP_TABLE keyword.
			tok, err := scan.next()
			if err != nil {
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}
			if comps, convErr := strconv.Atoi(tok); convErr == nil {
				if comps != 1 {
					return nil, neuroviz.DataErrorf("vtk: scalar array %q has %d components; only 1 is supported", name, comps)
				}
				if tok, err = scan.next(); err != nil {
					return nil, neuroviz.DataErrorf("vtk: %v", err)
				}
			}
			if tok != "LOOKUP_TABLE" {
				return nil, neuroviz.DataErrorf("vtk: expected LOOKUP_TABLE, got %q", tok)
			}
			if _, err := scan.next(); err != nil { // table name, ignored
				return nil, neuroviz.DataErrorf("vtk: %v", err)
			}

			mesh.ScalarName = decodeVTKName(name)
			mesh.Scalars = make([]float64, len(mesh.Vertices))
			for i := range mesh.Scalars {
				if mesh.Scalars[i], err = scan.nextFloat(); err != nil {
					return nil, neuroviz.DataErrorf("vtk: bad scalar %d: %v", i, err)
				}
			}

		default:
			return nil, neuroviz.DataErrorf("vtk: unsupported section %q", section)
		}
	}

	if len(mesh.Vertices) == 0 {
		return nil, neuroviz.DataErrorf("vtk: file contains no points")
	}

	return mesh, nil
}

// Save writes the mesh in the format implied by the path extension: .vtk
// for legacy polydata, .stl for binary STL. STL cannot carry scalars; they
// are dropped with the geometry preserved.
func Save(path string, mesh *Mesh, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return neuroviz.DataErrorf("surface: %v", err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".vtk"):
		return WriteVTK(f, mesh, title)
	case strings.HasSuffix(path, ".stl"):
		return WriteSTL(f, mesh)
	}

	return neuroviz.ConfigErrorf("surface: unsupported format for %s; use .vtk or .stl", path)
}

// Load reads a mesh saved by Save.
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, neuroviz.DataErrorf("surface: %v", err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".vtk"):
		return ReadVTK(f)
	case strings.HasSuffix(path, ".stl"):
		return ReadSTL(f)
	}

	return nil, neuroviz.ConfigErrorf("surface: unsupported format for %s; use .vtk or .stl", path)
}
