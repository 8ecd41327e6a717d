package overlay

import (
	"testing"

	"golang.org/x/image/colornames"

	"github.com/neuroviz/neuroviz/nifti"
)

func TestFASTLabels(t *testing.T) {
	three := FASTLabels(3)
	if len(three) != 4 {
		t.Fatalf("3 classes: got %d labels", len(three))
	}
	names := []string{"background", "csf", "gray matter", "white matter"}
	for i, want := range names {
		if three[i].Name != want || three[i].ID != uint8(i) {
			t.Errorf("label %d: got %q (ID %d), want %q", i, three[i].Name, three[i].ID, want)
		}
	}

	five := FASTLabels(5)
	if len(five) != 6 {
		t.Fatalf("5 classes: got %d labels", len(five))
	}
	if five[4].Name != "class 4" || five[5].Name != "class 5" {
		t.Errorf("extra classes named %q, %q", five[4].Name, five[5].Name)
	}

	two := FASTLabels(2)
	if len(two) != 3 {
		t.Errorf("2 classes: got %d labels", len(two))
	}
}

func TestAxialClasses(t *testing.T) {
	seg := nifti.NewVolume(3, 2, 2, 1, [3]float32{1, 1, 1})
	seg.SetAt(0, 1, 0, 0, 2)
	seg.SetAt(1, 0, 0, 0, 3)
	// Off-integer values round to the nearest class.
	seg.SetAt(2, 0, 0, 0, 0.9)

	grid, err := AxialClasses(seg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if grid.W != 3 || grid.H != 2 {
		t.Fatalf("grid is %dx%d, want 3x2", grid.W, grid.H)
	}

	// Voxel y rows flip into image rows, so y=1 is the top picture row.
	if got := grid.ID[0]; got != 2 {
		t.Errorf("top left: got class %d, want 2", got)
	}
	if got := grid.ID[grid.W+1]; got != 3 {
		t.Errorf("bottom middle: got class %d, want 3", got)
	}
	if got := grid.ID[grid.W+2]; got != 1 {
		t.Errorf("rounded class: got %d, want 1", got)
	}

	if _, err := AxialClasses(seg, 5); err == nil {
		t.Error("expected an error for an out-of-range plane")
	}
}

func TestColorize(t *testing.T) {
	grid := ClassGrid{W: 2, H: 1, ID: []uint8{0, 1}}

	img, err := grid.Colorize(FASTLabels(3))
	if err != nil {
		t.Fatal(err)
	}

	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("background pixel is not transparent")
	}
	if got := img.RGBAAt(1, 0); got != colornames.Skyblue {
		t.Errorf("csf pixel: got %v, want %v", got, colornames.Skyblue)
	}

	bad := ClassGrid{W: 1, H: 1, ID: []uint8{9}}
	if _, err := bad.Colorize(FASTLabels(3)); err == nil {
		t.Error("expected an error for an unlabeled class")
	}
}

func TestCounts(t *testing.T) {
	grid := ClassGrid{W: 3, H: 2, ID: []uint8{0, 1, 1, 2, 2, 2}}

	counts := grid.Counts()
	if counts[0] != 1 || counts[1] != 2 || counts[2] != 3 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRegions(t *testing.T) {
	// Two separate columns of class 1 against a connected background.
	grid := ClassGrid{W: 4, H: 3, ID: []uint8{
		1, 0, 0, 1,
		1, 0, 0, 1,
		0, 0, 0, 0,
	}}

	regions := grid.Regions()
	if regions[1] != 2 {
		t.Errorf("class 1: got %d regions, want 2", regions[1])
	}
	if regions[0] != 1 {
		t.Errorf("background: got %d regions, want 1", regions[0])
	}
}

// A U shape labels its two arms separately on the first pass; the bottom
// row has to union them back into one region.
func TestRegionsMergesArms(t *testing.T) {
	grid := ClassGrid{W: 3, H: 3, ID: []uint8{
		2, 0, 2,
		2, 0, 2,
		2, 2, 2,
	}}

	regions := grid.Regions()
	if regions[2] != 1 {
		t.Errorf("U shape: got %d regions, want 1", regions[2])
	}
	if regions[0] != 1 {
		t.Errorf("enclosed background: got %d regions, want 1", regions[0])
	}
}
