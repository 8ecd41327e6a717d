// sweepanim renders an animated sweep through a NIfTI volume, one frame per
// slice along the chosen plane. The output extension picks the container:
// .gif is encoded in-process, .mp4 is piped through ffmpeg.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/neuroviz/neuroviz"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/render"
)

func main() {
	var file, out, planeName, cmapName string
	var timepoint, delay int
	var fps float64

	flag.StringVar(&file, "file", "", "Path to the NIfTI volume (.nii or .nii.gz).")
	flag.StringVar(&out, "out", "", "Output animation path (.gif or .mp4).")
	flag.StringVar(&planeName, "plane", "axial", "Sweep plane: axial, coronal, or sagittal.")
	flag.StringVar(&cmapName, "cmap", "gray", "Colormap: gray, hot, or jet.")
	flag.IntVar(&timepoint, "t", 0, "Timepoint to sweep for 4D volumes.")
	flag.IntVar(&delay, "delay", 4, "Hundredths of a second between GIF frames.")
	flag.Float64Var(&fps, "fps", 20, "Frames per second for MP4 output.")
	flag.Parse()

	if file == "" || out == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(file, out, planeName, cmapName, timepoint, delay, fps); err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}
}

func run(file, out, planeName, cmapName string, timepoint, delay int, fps float64) error {
	plane, err := render.ParsePlane(planeName)
	if err != nil {
		return err
	}

	cmap, err := render.ColormapByName(cmapName)
	if err != nil {
		return err
	}

	vol, err := nifti.Load(file)
	if err != nil {
		return err
	}

	if timepoint < 0 || timepoint >= vol.Nt {
		return neuroviz.DataErrorf("sweepanim: timepoint %d out of range; %s has %d", timepoint, file, vol.Nt)
	}

	n := render.SliceCount(vol, plane)
	log.Printf("sweeping %d %s slices of %s at timepoint %d", n, plane, file, timepoint)

	switch strings.ToLower(filepath.Ext(out)) {
	case ".gif":
		err = render.SliceSweepGIF(vol, plane, timepoint, cmap, delay, out)
	case ".mp4":
		err = render.SliceSweepVideo(vol, plane, timepoint, cmap, fps, out)
	default:
		return neuroviz.ConfigErrorf("sweepanim: output %s must end in .gif or .mp4", out)
	}
	if err != nil {
		return err
	}

	log.Printf("wrote %s", out)

	return nil
}
