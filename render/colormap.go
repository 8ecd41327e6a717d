// Package render turns volumes and meshes into images: single slices,
// intensity projections, montages, slice-sweep animations, and the signal
// charts shown by the previewer. All slice renderers share the same
// windowing: intensities are scaled against the volume-wide maximum, with
// negatives clamped to zero.
package render

import (
	"image/color"
	"math"

	"github.com/neuroviz/neuroviz"
)

// Colormap maps a normalized intensity in [0, 1] onto a display color.
type Colormap func(t float64) color.RGBA

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}

	return t
}

func channel(v float64) uint8 {
	return uint8(math.Round(255 * clamp01(v)))
}

// Gray is the anatomical default.
func Gray(t float64) color.RGBA {
	g := channel(t)

	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// Hot ramps black, red, yellow, white. Used for functional overlays.
func Hot(t float64) color.RGBA {
	t = clamp01(t)

	return color.RGBA{
		R: channel(3 * t),
		G: channel(3*t - 1),
		B: channel(3*t - 2),
		A: 255,
	}
}

// Jet is the classic blue-cyan-yellow-red rainbow.
func Jet(t float64) color.RGBA {
	t = clamp01(t)

	return color.RGBA{
		R: channel(1.5 - math.Abs(4*t-3)),
		G: channel(1.5 - math.Abs(4*t-2)),
		B: channel(1.5 - math.Abs(4*t-1)),
		A: 255,
	}
}

// ColormapByName resolves the colormap names accepted in settings.
func ColormapByName(name string) (Colormap, error) {
	switch name {
	case "gray":
		return Gray, nil
	case "hot":
		return Hot, nil
	case "jet":
		return Jet, nil
	}

	return nil, neuroviz.ConfigErrorf("unknown colormap %q", name)
}
