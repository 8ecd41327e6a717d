package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"runtime"

	"github.com/carbocation/go-quantize/quantize"
	"github.com/carbocation/pfx"
	"github.com/unixpickle/ffmpego"

	"github.com/neuroviz/neuroviz/nifti"
)

type orderedPaletted struct {
	key   int
	image *image.Paletted
}

// MakeGIF creates an animated gif from an ordered slice of images. The delay
// between frames is in hundredths of a second. The color quantizer is built
// from *all* input images, and the quantized palette is shared across all of
// the output frames.
func MakeGIF(sortedImages []image.Image, delay int, withTransparency bool) (*gif.GIF, error) {
	outGif := &gif.GIF{}

	quantizer := quantize.MedianCutQuantizer{
		Aggregation:    quantize.Mean,
		Weighting:      nil,
		AddTransparent: withTransparency,
	}

	pal := quantizer.QuantizeMultiple(make([]color.Color, 0, 256), sortedImages)

	// Convert each image to a frame in our animated gif
	palettedImages := make(chan orderedPaletted)
	semaphore := make(chan struct{}, runtime.NumCPU())

	// This is surprisingly slow and so is worth parallelizing.
	go func() {
		for k, img := range sortedImages {
			semaphore <- struct{}{}

			go func(k int, img image.Image) {
				defer func() { <-semaphore }()

				palettedImage := image.NewPaletted(img.Bounds(), pal)
				draw.Draw(palettedImage, img.Bounds(), img, image.Point{}, draw.Over)

				palettedImages <- orderedPaletted{
					key:   k,
					image: palettedImage,
				}
			}(k, img)
		}
	}()

	// Save the outputs - in order
	sortedPalettedImages := make([]*image.Paletted, len(sortedImages))
	for range sortedImages {

		palettedImage := <-palettedImages
		sortedPalettedImages[palettedImage.key] = palettedImage.image

	}

	// Assemble into a gif
	for _, palettedImage := range sortedPalettedImages {
		outGif.Image = append(outGif.Image, palettedImage)
		outGif.Delay = append(outGif.Delay, delay)
	}

	return outGif, nil
}

// SweepFrames renders every slice along the plane as one frame, all sharing
// the volume-wide intensity window.
func SweepFrames(vol *nifti.Volume, plane Plane, t int, cmap Colormap) []image.Image {
	_, maxIntensity := vol.MinMax()

	n := SliceCount(vol, plane)
	frames := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, SliceRGBA(vol, plane, i, t, float64(maxIntensity), cmap))
	}

	return frames
}

// SliceSweepGIF writes an animated sweep through every slice of the plane.
// The delay between frames is in hundredths of a second.
func SliceSweepGIF(vol *nifti.Volume, plane Plane, t int, cmap Colormap, delay int, outName string) error {
	outGif, err := MakeGIF(SweepFrames(vol, plane, t, cmap), delay, false)
	if err != nil {
		return pfx.Err(err)
	}

	// Save file
	f, err := os.OpenFile(outName, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return pfx.Err(err)
	}

	defer f.Close()

	return pfx.Err(gif.EncodeAll(f, outGif))
}

// SliceSweepVideo writes the same sweep as a video file via ffmpeg. The
// container format follows the output name's extension.
func SliceSweepVideo(vol *nifti.Volume, plane Plane, t int, cmap Colormap, fps float64, outName string) error {
	frames := SweepFrames(vol, plane, t, cmap)
	if len(frames) == 0 {
		return pfx.Err(os.ErrInvalid)
	}

	w := frames[0].Bounds().Dx()
	h := frames[0].Bounds().Dy()

	vw, err := ffmpego.NewVideoWriter(outName, w, h, fps)
	if err != nil {
		return err
	}
	defer vw.Close()

	for _, frame := range frames {
		if err := vw.WriteFrame(frame); err != nil {
			return err
		}
	}

	return nil
}
