package export

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/surface"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{uint8(25 * x), uint8(30 * y), 0, 255})
		}
	}

	return img
}

func testMesh() *surface.Mesh {
	return &surface.Mesh{
		Vertices: []surface.Vector{
			{X: 1, Y: 2, Z: 3},
			{X: 4, Y: 5, Z: 6},
		},
		Faces:      [][3]int{{0, 1, 0}},
		Scalars:    []float64{0.5, 2},
		ScalarName: "fMRI Activations",
	}
}

func TestExporterHonorsSaveFigures(t *testing.T) {
	dir := t.TempDir()

	off := &Exporter{OutputDir: dir, Format: "png", DPI: 150, SaveFigures: false}
	path, err := off.Figure(testImage(), "axial")
	if err != nil {
		t.Fatalf("Figure() error: %v", err)
	}
	if path != "" {
		t.Errorf("disabled exporter returned path %q", path)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("disabled exporter wrote %d files", len(entries))
	}

	on := &Exporter{OutputDir: dir, Format: "png", DPI: 150, SaveFigures: true}
	path, err = on.Figure(testImage(), "axial")
	if err != nil {
		t.Fatalf("Figure() error: %v", err)
	}
	if filepath.Ext(path) != ".png" || filepath.Dir(path) != dir {
		t.Errorf("Figure() path = %q, want a .png inside %q", path, dir)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("figure file missing: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("figure is not a png: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 8 {
		t.Errorf("figure bounds = %v, want 10x8", img.Bounds())
	}
}

func TestWriteFigureVectorFormats(t *testing.T) {
	dir := t.TempDir()

	svgPath := filepath.Join(dir, "fig.svg")
	if err := WriteFigure(testImage(), svgPath, "svg", 150); err != nil {
		t.Fatalf("WriteFigure(svg) error: %v", err)
	}
	svgBytes, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(svgBytes), "<svg") {
		t.Error("svg output is missing an <svg> element")
	}

	pdfPath := filepath.Join(dir, "fig.pdf")
	if err := WriteFigure(testImage(), pdfPath, "pdf", 150); err != nil {
		t.Fatalf("WriteFigure(pdf) error: %v", err)
	}
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(pdfBytes), "%PDF") {
		t.Error("pdf output is missing the %PDF header")
	}
}

func TestWriteFigureUnknownFormat(t *testing.T) {
	err := WriteFigure(testImage(), filepath.Join(t.TempDir(), "fig.bmp"), "bmp", 150)
	if err == nil {
		t.Fatal("expected an error for an unknown format")
	}

	var confErr *neuroviz.ConfigError
	if !errors.As(err, &confErr) {
		t.Errorf("error should classify as a config error, got %T", err)
	}
}

func TestVertexTableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vertices.csv")

	if err := VertexTable(testMesh(), path, "csv"); err != nil {
		t.Fatalf("VertexTable() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if lines[0] != "vertex,x,y,z,activation" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,1,2,3,0.5" {
		t.Errorf("row 0 = %q", lines[1])
	}
	if lines[2] != "1,4,5,6,2" {
		t.Errorf("row 1 = %q", lines[2])
	}
}

func TestVertexTableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vertices.json")

	if err := VertexTable(testMesh(), path, "json"); err != nil {
		t.Fatalf("VertexTable() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var rows []struct {
		Vertex     int     `json:"vertex"`
		X          float64 `json:"x"`
		Activation float64 `json:"activation"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		t.Fatalf("json parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Vertex != 1 || rows[1].X != 4 || rows[1].Activation != 2 {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestVolumeInfo(t *testing.T) {
	vol := nifti.NewVolume(2, 3, 4, 5, [3]float32{1, 1.5, 2})
	vol.TR = 2.1

	path := filepath.Join(t.TempDir(), "volume.json")
	if err := VolumeInfo(vol, path); err != nil {
		t.Fatalf("VolumeInfo() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var info struct {
		Dims   [4]int     `json:"dims"`
		PixDim [3]float32 `json:"pixdim_mm"`
		TR     float64    `json:"tr_sec"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("json parse: %v", err)
	}
	if info.Dims != [4]int{2, 3, 4, 5} {
		t.Errorf("dims = %v", info.Dims)
	}
	if info.PixDim != [3]float32{1, 1.5, 2} {
		t.Errorf("pixdim = %v", info.PixDim)
	}
	if info.TR != 2.1 {
		t.Errorf("tr = %g", info.TR)
	}
}
