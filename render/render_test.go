package render

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/surface"
)

func testVolume() *nifti.Volume {
	vol := nifti.NewVolume(4, 3, 2, 1, [3]float32{1, 1, 1})
	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				vol.SetAt(x, y, z, 0, float32(x+10*y+100*z))
			}
		}
	}

	return vol
}

func TestColormapEndpoints(t *testing.T) {
	tests := []struct {
		name string
		cmap Colormap
		lo   color.RGBA
		hi   color.RGBA
	}{
		{"gray", Gray, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255}},
		{"hot", Hot, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255}},
		{"jet", Jet, color.RGBA{0, 0, 128, 255}, color.RGBA{128, 0, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmap(0); got != tt.lo {
				t.Errorf("cmap(0): got %v, want %v", got, tt.lo)
			}
			if got := tt.cmap(1); got != tt.hi {
				t.Errorf("cmap(1): got %v, want %v", got, tt.hi)
			}
			// Out-of-range inputs clamp rather than wrap.
			if got := tt.cmap(-5); got != tt.lo {
				t.Errorf("cmap(-5): got %v, want %v", got, tt.lo)
			}
			if got := tt.cmap(5); got != tt.hi {
				t.Errorf("cmap(5): got %v, want %v", got, tt.hi)
			}
		})
	}
}

func TestColormapByName(t *testing.T) {
	if _, err := ColormapByName("hot"); err != nil {
		t.Error(err)
	}
	if _, err := ColormapByName("viridis"); err == nil {
		t.Error("expected an error for an unknown colormap")
	}
}

func TestApplyWindowScaling(t *testing.T) {
	if got := ApplyWindowScaling(-10, 100); got != 0 {
		t.Errorf("negative intensity: got %d", got)
	}
	if got := ApplyWindowScaling(100, 100); got != math.MaxUint16 {
		t.Errorf("max intensity: got %d", got)
	}
	if got := ApplyWindowScaling(50, 100); got != math.MaxUint16/2 {
		t.Errorf("half intensity: got %d", got)
	}
	if got := ApplyWindowScaling(200, 100); got != math.MaxUint16 {
		t.Errorf("above-window intensity: got %d", got)
	}
}

func TestSliceDimensions(t *testing.T) {
	vol := testVolume()

	tests := []struct {
		plane  Plane
		w, h   int
		slices int
	}{
		{Axial, 4, 3, 2},
		{Coronal, 4, 2, 3},
		{Sagittal, 3, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.plane.String(), func(t *testing.T) {
			img := SliceGray16(vol, tt.plane, 0, 0, 300)
			if img.Bounds().Dx() != tt.w || img.Bounds().Dy() != tt.h {
				t.Errorf("bounds %v, want %dx%d", img.Bounds(), tt.w, tt.h)
			}
			if got := SliceCount(vol, tt.plane); got != tt.slices {
				t.Errorf("slice count: got %d, want %d", got, tt.slices)
			}
		})
	}
}

// The top image row of an axial slice must show the highest y row of the
// grid.
func TestAxialRowFlip(t *testing.T) {
	vol := testVolume()
	_, max := vol.MinMax()

	img := SliceGray16(vol, Axial, 0, 0, float64(max))

	want := ApplyWindowScaling(float64(vol.At(0, vol.Ny-1, 0, 0)), float64(max))
	if got := img.Gray16At(0, 0).Y; got != want {
		t.Errorf("top left pixel: got %d, want %d", got, want)
	}
}

func TestProject(t *testing.T) {
	vol := nifti.NewVolume(2, 2, 3, 1, [3]float32{1, 1, 1})
	vol.SetAt(0, 0, 1, 0, 90)
	vol.SetAt(0, 0, 0, 0, 30)

	mip := Project(vol, Axial, MaximumIntensity, 0, 90)
	// Voxel (0, 0) renders at image row Ny-1-0 = 1 after the vertical flip.
	if got := mip.Gray16At(0, 1).Y; got != math.MaxUint16 {
		t.Errorf("mip: got %d, want %d", got, math.MaxUint16)
	}

	aip := Project(vol, Axial, AverageIntensity, 0, 90)
	want := ApplyWindowScaling((90+30)/3.0, 90)
	if got := aip.Gray16At(0, 1).Y; got != want {
		t.Errorf("aip: got %d, want %d", got, want)
	}
}

func TestGrid(t *testing.T) {
	red := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			red.SetRGBA(i, j, color.RGBA{255, 0, 0, 255})
		}
	}

	panes := []image.Image{red, red, red}
	grid := Grid(panes, 2)

	if got := grid.Bounds(); got.Dx() != 4 || got.Dy() != 4 {
		t.Errorf("grid bounds %v, want 4x4", got)
	}

	// Pane 2 sits at row 1, column 0; the cell to its right stays black.
	if r, _, _, _ := grid.At(0, 2).RGBA(); r == 0 {
		t.Error("third pane not drawn")
	}
	if r, g, b, _ := grid.At(3, 3).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Error("empty cell is not black")
	}
}

func TestThreeView(t *testing.T) {
	img := ThreeView(testVolume(), 0, 3, Gray)

	// Cells take the largest pane size: 4x3 panes in 3 columns.
	if got := img.Bounds(); got.Dx() != 12 || got.Dy() != 3 {
		t.Errorf("montage bounds %v", got)
	}
}

func TestCompositeOverlay(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			base.SetRGBA(i, j, color.RGBA{0, 0, 255, 255})
		}
	}
	over := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			over.SetRGBA(i, j, color.RGBA{255, 0, 0, 255})
		}
	}

	transparent := CompositeOverlay(base, over, 0)
	if r, _, b, _ := transparent.At(1, 1).RGBA(); r != 0 || b == 0 {
		t.Error("opacity 0 should leave the base visible")
	}

	opaque := CompositeOverlay(base, over, 1)
	if r, _, b, _ := opaque.At(1, 1).RGBA(); r == 0 || b != 0 {
		t.Error("opacity 1 should show the overlay")
	}
}

func TestMakeGIF(t *testing.T) {
	frames := SweepFrames(testVolume(), Axial, 0, Gray)

	out, err := MakeGIF(frames, 10, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(out.Image) != len(frames) {
		t.Errorf("got %d frames, want %d", len(out.Image), len(frames))
	}
	for i, d := range out.Delay {
		if d != 10 {
			t.Errorf("frame %d delay: got %d", i, d)
		}
	}
}

func TestPlotTracePNG(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 0, -1}

	var buf bytes.Buffer
	if err := PlotTracePNG(&buf, "trace", x, y, 512, 256, 0, 0); err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestPlotStackedTracesPNG(t *testing.T) {
	traces := [][]float64{
		{0, 1, 0, -1, 0, 1},
		{5, 4, 5, 6, 5, 4},
	}

	var buf bytes.Buffer
	err := PlotStackedTracesPNG(&buf, "eeg", []string{"Cz", "Pz"}, traces, 256, 512, 256)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func testTetrahedron() *surface.Mesh {
	return &surface.Mesh{
		Vertices: []surface.Vector{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		},
		Faces: [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestSurfaceImage(t *testing.T) {
	mesh := testTetrahedron()
	mesh.Scalars = []float64{0, 1, 2, 3}
	mesh.ScalarName = "fMRI Activations"

	opts := SurfaceOptions{
		Width:      64,
		Height:     48,
		Azimuth:    30,
		Elevation:  20,
		Background: [3]float64{0.1, 0.1, 0.1},
		Colormap:   Hot,
		Saturation: 0.9,
	}

	img := SurfaceImage(mesh, opts)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("got %v, want 64x48", img.Bounds())
	}

	bg := color.RGBA{26, 26, 26, 255}
	corners := []image.Point{{0, 0}, {63, 0}, {0, 47}, {63, 47}}
	background := 0
	for _, p := range corners {
		if r, g, b, _ := img.At(p.X, p.Y).RGBA(); uint8(r>>8) == bg.R && uint8(g>>8) == bg.G && uint8(b>>8) == bg.B {
			background++
		}
	}
	if background == 0 {
		t.Error("no corner shows the background color")
	}

	mesh2 := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if r, g, b, _ := img.At(x, y).RGBA(); uint8(r>>8) != bg.R || uint8(g>>8) != bg.G || uint8(b>>8) != bg.B {
				mesh2++
			}
		}
	}
	if mesh2 == 0 {
		t.Error("render contains no mesh pixels")
	}
}

func TestSurfaceImageTransparent(t *testing.T) {
	img := SurfaceImage(testTetrahedron(), SurfaceOptions{
		Width:       32,
		Height:      32,
		Azimuth:     45,
		Elevation:   30,
		Transparent: true,
	})

	opaque, clear := 0, 0
	grayish := true
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				clear++
				continue
			}
			opaque++
			if r != g || g != b {
				grayish = false
			}
		}
	}

	if opaque == 0 {
		t.Error("no opaque mesh pixels")
	}
	if clear == 0 {
		t.Error("no transparent backdrop pixels")
	}
	if !grayish {
		t.Error("scalar-free mesh should render in neutral gray")
	}
}

func TestSurfaceImageEmptyMesh(t *testing.T) {
	img := SurfaceImage(&surface.Mesh{}, SurfaceOptions{Width: 16, Height: 16})

	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Fatalf("got %v, want 16x16", img.Bounds())
	}
}

func TestScalarScaleTop(t *testing.T) {
	tests := []struct {
		name       string
		scalars    []float64
		saturation float64
		want       float64
	}{
		{"damped", []float64{0, 2, 10}, 0.5, 5},
		{"full scale", []float64{4}, 1, 4},
		{"saturation out of range", []float64{4}, 2, 4},
		{"no scalars", nil, 0.9, 1},
		{"all zero", []float64{0, 0}, 0.9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScalarScaleTop(tt.scalars, tt.saturation); got != tt.want {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
}

func TestWithColorbar(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			base.SetRGBA(x, y, color.RGBA{0, 0, 255, 255})
		}
	}

	out := WithColorbar(base, Gray, 0, 10)

	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 120 {
		t.Fatalf("got %v, want 200x120", out.Bounds())
	}

	// Bar sits at the right edge with an 8 pixel margin; its ramp runs from
	// max at the top to min at the bottom.
	barX, barY, barH := 200-colorbarWidth-colorbarMargin, colorbarMargin, 120/3
	if r, g, b, _ := out.At(barX, barY).RGBA(); uint8(r>>8) != 255 || uint8(g>>8) != 255 || uint8(b>>8) != 255 {
		t.Errorf("ramp top: got %d %d %d, want white", uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
	if r, g, b, _ := out.At(barX, barY+barH-1).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("ramp bottom: got %d %d %d, want black", uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}

	// Outside the bar the base shows through.
	if _, _, b, _ := out.At(0, 0).RGBA(); uint8(b>>8) != 255 {
		t.Error("base not preserved outside the bar")
	}
}
