// Package export serializes figures and derived data into the configured
// output directory: png directly, svg and pdf through a canvas re-draw, and
// vertex tables as csv or json.
package export

import (
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/surface"
)

// Exporter binds the export settings of one run.
type Exporter struct {
	OutputDir   string
	Format      string
	DPI         int
	DataFormat  string
	SaveFigures bool
}

func NewExporter(cfg *config.Config) (*Exporter, error) {
	out, err := cfg.OutputRoot()
	if err != nil {
		return nil, err
	}

	return &Exporter{
		OutputDir:   out,
		Format:      cfg.Export.FigureFormat,
		DPI:         cfg.Export.FigureDPI,
		DataFormat:  cfg.Export.DataFormat,
		SaveFigures: cfg.Export.SaveFigures,
	}, nil
}

// Figure writes the image under the configured format and returns the path,
// or "" when figure saving is disabled.
func (e *Exporter) Figure(img image.Image, name string) (string, error) {
	if !e.SaveFigures {
		return "", nil
	}

	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", neuroviz.DataErrorf("export: %v", err)
	}

	path := filepath.Join(e.OutputDir, name+"."+e.Format)
	if err := WriteFigure(img, path, e.Format, e.DPI); err != nil {
		return "", err
	}

	return path, nil
}

// Data writes the vertex table of a mapped surface and returns the path.
func (e *Exporter) Data(mesh *surface.Mesh, name string) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", neuroviz.DataErrorf("export: %v", err)
	}

	path := filepath.Join(e.OutputDir, name+"."+e.DataFormat)
	if err := VertexTable(mesh, path, e.DataFormat); err != nil {
		return "", err
	}

	return path, nil
}

// WriteFigure encodes the image at path. png is written directly; svg and
// pdf draw the raster onto a canvas sized so the pixel grid maps onto
// physical millimeters at the requested dpi.
func WriteFigure(img image.Image, path, format string, dpi int) error {
	switch format {
	case "png":
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return neuroviz.DataErrorf("export: %v", err)
		}
		defer f.Close()

		if err := png.Encode(f, img); err != nil {
			return neuroviz.DataErrorf("export: %v", err)
		}

		return nil

	case "svg", "pdf":
		if dpi < 1 {
			dpi = 150
		}
		dpmm := float64(dpi) / 25.4

		bounds := img.Bounds()
		c := canvas.New(float64(bounds.Dx())/dpmm, float64(bounds.Dy())/dpmm)

		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV)
		ctx.DrawImage(0, 0, img, canvas.DPMM(dpmm))

		if err := renderers.Write(path, c); err != nil {
			return neuroviz.DataErrorf("export: %v", err)
		}

		return nil
	}

	return neuroviz.ConfigErrorf("export: unknown figure format %q", format)
}

// vertexRow is one line of the exported table.
type vertexRow struct {
	Vertex     int     `csv:"vertex" json:"vertex"`
	X          float64 `csv:"x" json:"x"`
	Y          float64 `csv:"y" json:"y"`
	Z          float64 `csv:"z" json:"z"`
	Activation float64 `csv:"activation" json:"activation"`
}

func vertexRows(mesh *surface.Mesh) []vertexRow {
	rows := make([]vertexRow, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		rows[i] = vertexRow{Vertex: i, X: v.X, Y: v.Y, Z: v.Z}
		if mesh.Scalars != nil {
			rows[i].Activation = mesh.Scalars[i]
		}
	}

	return rows
}

// VertexTable writes per-vertex positions and activations as csv or json.
func VertexTable(mesh *surface.Mesh, path, format string) error {
	rows := vertexRows(mesh)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return neuroviz.DataErrorf("export: %v", err)
	}
	defer f.Close()

	switch format {
	case "csv":
		if err := gocsv.Marshal(&rows, f); err != nil {
			return neuroviz.DataErrorf("export: %v", err)
		}

		return nil

	case "json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return neuroviz.DataErrorf("export: %v", err)
		}

		return nil
	}

	return neuroviz.ConfigErrorf("export: unknown data format %q", format)
}

// volumeInfo is the loader's metadata dump for a volume.
type volumeInfo struct {
	Dims   [4]int        `json:"dims"`
	PixDim [3]float32    `json:"pixdim_mm"`
	TR     float64       `json:"tr_sec,omitempty"`
	Affine [4][4]float64 `json:"affine"`
}

// VolumeInfo writes the grid geometry of a volume as json.
func VolumeInfo(vol *nifti.Volume, path string) error {
	info := volumeInfo{
		Dims:   [4]int{vol.Nx, vol.Ny, vol.Nz, vol.Nt},
		PixDim: vol.PixDim,
		TR:     vol.TR,
		Affine: vol.Affine,
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return neuroviz.DataErrorf("export: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return neuroviz.DataErrorf("export: %v", err)
	}

	return nil
}
