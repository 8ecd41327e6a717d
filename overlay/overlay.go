// Package overlay colors hard tissue segmentations for visual QC. FAST
// stores class indices rather than intensities, so its output cannot go
// through the normal slice renderer; the functions here turn one plane of
// class indices into a transparent-background color mask that composites
// onto a rendered anatomical slice.
package overlay

import (
	"fmt"
	"image/color"

	"golang.org/x/image/colornames"
)

// A Label pairs a segmentation class index with its reporting name and
// overlay color. Class 0 is always the background and renders transparent.
type Label struct {
	ID    uint8
	Name  string
	Color color.RGBA
}

// extraColors cover classes past the three-tissue convention when fast is
// run with a larger -n.
var extraColors = []color.RGBA{
	colornames.Gold,
	colornames.Orchid,
	colornames.Turquoise,
	colornames.Salmon,
}

// FASTLabels names the classes of a fast hard segmentation. Under the
// conventional three-class run the indices mean background, CSF, gray
// matter, and white matter, in that order; extra classes keep their index
// as their name.
func FASTLabels(classes int) []Label {
	labels := []Label{
		{ID: 0, Name: "background"},
		{ID: 1, Name: "csf", Color: colornames.Skyblue},
		{ID: 2, Name: "gray matter", Color: colornames.Limegreen},
		{ID: 3, Name: "white matter", Color: colornames.Orangered},
	}

	for id := 4; id <= classes; id++ {
		labels = append(labels, Label{
			ID:    uint8(id),
			Name:  fmt.Sprintf("class %d", id),
			Color: extraColors[(id-4)%len(extraColors)],
		})
	}

	if classes+1 < len(labels) {
		labels = labels[:classes+1]
	}

	return labels
}
