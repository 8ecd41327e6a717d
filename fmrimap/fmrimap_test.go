package fmrimap

import (
	"errors"
	"math"
	"testing"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/surface"
)

// boldSeries builds a 4x4x4 series with 2mm voxels and three frames. Voxel
// (1,2,3) ramps 10, 20, 30 over time and voxel (2,2,3) holds 40, so nearest
// and trilinear lookups give distinct answers.
func boldSeries() *nifti.Volume {
	vol := nifti.NewVolume(4, 4, 4, 3, [3]float32{2, 2, 2})
	for t := 0; t < 3; t++ {
		vol.SetAt(1, 2, 3, t, float32(10*(t+1)))
		vol.SetAt(2, 2, 3, t, 40)
	}

	return vol
}

func probeMesh() *surface.Mesh {
	return &surface.Mesh{
		Vertices: []surface.Vector{
			{X: 2, Y: 4, Z: 6},       // voxel (1,2,3)
			{X: 100, Y: 100, Z: 100}, // outside the grid
			{X: 3, Y: 4, Z: 6},       // voxel (1.5,2,3), between the probes
		},
		Faces: [][3]int{{0, 1, 2}},
	}
}

func TestMapNearestTimepoint(t *testing.T) {
	mesh := probeMesh()

	mapped, err := Map(mesh, boldSeries(), Options{Mapping: MappingNearest, Statistic: StatisticTimepoint})
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}

	if mapped.ScalarName != ScalarName {
		t.Errorf("ScalarName = %q, want %q", mapped.ScalarName, ScalarName)
	}
	// 1.5 rounds away from zero, so the middle vertex lands on the 40 probe.
	for i, want := range []float64{10, 0, 40} {
		if got := mapped.Scalars[i]; got != want {
			t.Errorf("scalar %d = %g, want %g", i, got, want)
		}
	}
	if mesh.Scalars != nil {
		t.Error("input mesh was mutated")
	}
}

func TestMapTimepointSelection(t *testing.T) {
	mapped, err := Map(probeMesh(), boldSeries(), Options{Timepoint: 1})
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}

	if got := mapped.Scalars[0]; got != 20 {
		t.Errorf("scalar at frame 1 = %g, want 20", got)
	}
}

func TestMapMeanStatistic(t *testing.T) {
	mapped, err := Map(probeMesh(), boldSeries(), Options{Statistic: StatisticMean})
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}

	if got := mapped.Scalars[0]; math.Abs(got-20) > 1e-5 {
		t.Errorf("mean scalar = %g, want 20", got)
	}
	if got := mapped.Scalars[2]; got != 40 {
		t.Errorf("constant probe mean = %g, want 40", got)
	}
}

func TestMapTrilinear(t *testing.T) {
	mapped, err := Map(probeMesh(), boldSeries(), Options{Mapping: MappingTrilinear})
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}

	if got := mapped.Scalars[2]; math.Abs(got-25) > 1e-5 {
		t.Errorf("interpolated scalar = %g, want the 10/40 midpoint 25", got)
	}
	if got := mapped.Scalars[1]; got != 0 {
		t.Errorf("outside scalar = %g, want 0", got)
	}
}

func TestMapBadOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		conf bool
	}{
		{"timepoint past end", Options{Timepoint: 5}, false},
		{"negative timepoint", Options{Timepoint: -1}, false},
		{"unknown mapping", Options{Mapping: "spline"}, true},
		{"unknown statistic", Options{Statistic: "median"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Map(probeMesh(), boldSeries(), tc.opts)
			if err == nil {
				t.Fatal("expected an error")
			}

			if tc.conf {
				var confErr *neuroviz.ConfigError
				if !errors.As(err, &confErr) {
					t.Errorf("error should classify as a config error, got %T", err)
				}
			} else {
				var dataErr *neuroviz.DataError
				if !errors.As(err, &dataErr) {
					t.Errorf("error should classify as a data error, got %T", err)
				}
			}
		})
	}
}

func TestCoverage(t *testing.T) {
	mesh := &surface.Mesh{
		Vertices: []surface.Vector{
			{X: 2, Y: 4, Z: 6},
			{X: 100, Y: 100, Z: 100},
		},
	}

	if got := Coverage(mesh, boldSeries()); got != 0.5 {
		t.Errorf("Coverage() = %g, want 0.5", got)
	}
	if got := Coverage(&surface.Mesh{}, boldSeries()); got != 0 {
		t.Errorf("Coverage(empty) = %g, want 0", got)
	}
}
