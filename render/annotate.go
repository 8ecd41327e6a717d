package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Label writes white text near the top left corner of an image.
func Label(img image.Image, label string) image.Image {
	ctx := gg.NewContextForImage(img)
	ctx.SetRGB(1, 1, 1)
	ctx.DrawString(label, 2, 10)

	return ctx.Image()
}

// MarkPoints draws filled circles at the given pixel positions. The viewer
// uses this for electrode markers on slice images.
func MarkPoints(img image.Image, points []image.Point, col color.Color, radius float64) image.Image {
	ctx := gg.NewContextForImage(img)
	ctx.SetColor(col)

	for _, pt := range points {
		ctx.DrawCircle(float64(pt.X), float64(pt.Y), radius)
		ctx.Fill()
	}

	return ctx.Image()
}

// Colorbar renders a vertical colormap reference: the full ramp from max at
// the top to min at the bottom, with the bounds written alongside.
func Colorbar(cmap Colormap, w, h int, min, max float64) image.Image {
	if w < 16 {
		w = 16
	}
	if h < 32 {
		h = 32
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	barWidth := w / 3

	for y := 0; y < h; y++ {
		t := 1 - float64(y)/float64(h-1)
		c := cmap(t)
		for x := 0; x < barWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	ctx := gg.NewContextForImage(img)
	ctx.SetRGB(1, 1, 1)
	ctx.DrawString(fmt.Sprintf("%.3g", max), float64(barWidth)+2, 10)
	ctx.DrawString(fmt.Sprintf("%.3g", min), float64(barWidth)+2, float64(h)-2)

	return ctx.Image()
}

const (
	colorbarWidth  = 72
	colorbarMargin = 8
)

// WithColorbar blends a vertical scalar reference bar into the right edge
// of img. Pass the same min and max the figure was colored with; for a
// saturated surface render that is 0 and ScalarScaleTop.
func WithColorbar(img image.Image, cmap Colormap, min, max float64) image.Image {
	b := img.Bounds()

	barH := b.Dy() / 3
	bar := Colorbar(cmap, colorbarWidth, barH, min, max)

	pos := image.Pt(b.Dx()-colorbarWidth-colorbarMargin, colorbarMargin)

	return imaging.Overlay(img, bar, pos, 1)
}

// CompositeOverlay resizes the overlay to the base bounds and blends it on
// top with the given opacity, 0 transparent to 1 opaque.
func CompositeOverlay(base, overlay image.Image, opacity float64) image.Image {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}

	resized := imaging.Resize(overlay, base.Bounds().Dx(), base.Bounds().Dy(), imaging.NearestNeighbor)

	return imaging.Overlay(base, resized, image.Point{}, opacity)
}
