package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/neuroviz/neuroviz/nifti"
)

// Grid tiles panes into a montage, left to right then top to bottom, on a
// black background. Cells take the size of the largest pane; smaller panes
// are anchored at their cell's top left.
func Grid(panes []image.Image, ncols int) image.Image {
	if ncols < 1 {
		ncols = 1
	}
	nrows := len(panes) / ncols
	if len(panes)%ncols != 0 {
		nrows++
	}

	maxWidth := 1
	maxHeight := 1
	for _, pane := range panes {
		if x := pane.Bounds().Dx(); x > maxWidth {
			maxWidth = x
		}
		if y := pane.Bounds().Dy(); y > maxHeight {
			maxHeight = y
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, ncols*maxWidth, nrows*maxHeight))
	draw.Draw(out, out.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	for k, pane := range panes {
		startX := (k % ncols) * maxWidth
		startY := (k / ncols) * maxHeight

		drawRect := image.Rect(startX, startY, startX+pane.Bounds().Dx(), startY+pane.Bounds().Dy())
		draw.Draw(out, drawRect, pane, image.Point{}, draw.Src)
	}

	return out
}

// ThreeView is the standard preview montage: the middle slice along each
// plane, labeled, side by side. nplanes trims the montage to the first 1-3
// planes.
func ThreeView(vol *nifti.Volume, t, nplanes int, cmap Colormap) image.Image {
	if nplanes < 1 {
		nplanes = 1
	}
	if nplanes > len(Planes) {
		nplanes = len(Planes)
	}

	_, maxIntensity := vol.MinMax()

	panes := make([]image.Image, 0, nplanes)
	for _, plane := range Planes[:nplanes] {
		mid := SliceCount(vol, plane) / 2
		pane := SliceRGBA(vol, plane, mid, t, float64(maxIntensity), cmap)
		panes = append(panes, Label(pane, plane.String()))
	}

	return Grid(panes, len(panes))
}
