// loaddata loads the anatomical and functional volumes for every configured
// subject, checks that the pair is usable by the downstream stages, and
// reports grid geometry on stdout as tab-delimited lines. Middle-slice
// preview images go to the output directory so acquisition problems are
// visible before any processing time is spent. With -roundtrip each volume
// is also re-encoded and loaded back, which exercises the writer against
// real data rather than synthetic grids.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/voxel"
)

func main() {
	var configPath string
	var roundtrip bool

	flag.StringVar(&configPath, "config", "", "Path to the project YAML settings file.")
	flag.BoolVar(&roundtrip, "roundtrip", false, "Re-encode each loaded volume and load it back to verify I/O.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(configPath, roundtrip); err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}
}

func run(configPath string, roundtrip bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Println(cfg.Describe())

	layout, err := bids.NewLayout(cfg)
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(exporter.OutputDir, 0755); err != nil {
		return neuroviz.DataErrorf("loaddata: %v", err)
	}

	cmapT1, err := render.ColormapByName(cfg.Visualization.ColormapT1)
	if err != nil {
		return err
	}
	cmapFMRI, err := render.ColormapByName(cfg.Visualization.ColormapFMRI)
	if err != nil {
		return err
	}

	for _, subject := range cfg.Subjects {
		if err := loadOne(layout, exporter, subject, cmapT1, cmapFMRI, roundtrip); err != nil {
			return err
		}
	}

	return nil
}

func loadOne(layout *bids.Layout, exporter *export.Exporter, subject string, cmapT1, cmapFMRI render.Colormap, roundtrip bool) error {
	t1Path, err := layout.ResolveT1(subject)
	if err != nil {
		return err
	}
	t1, err := nifti.Load(t1Path)
	if err != nil {
		return err
	}

	fmriPath, err := layout.ResolveFMRI(subject)
	if err != nil {
		return err
	}
	bold, err := nifti.Load(fmriPath)
	if err != nil {
		return err
	}

	// A functional volume without a time axis cannot feed the mapper.
	if !bold.Is4D() {
		return neuroviz.DataErrorf("loaddata: %s: functional volume %s has a single frame; expected a 4D series", subject, fmriPath)
	}

	if !t1.AxialPositive() {
		log.Printf("%s: T1 axial axis does not point superior; slice ordering may appear flipped", subject)
	}
	if !t1.SameGrid(bold) {
		log.Printf("%s: T1 and fMRI grids differ; the mapper reconciles them through world coordinates", subject)
	}

	describe(subject, "t1", t1Path, t1)
	describe(subject, "bold", fmriPath, bold)

	if err := export.VolumeInfo(t1, filepath.Join(exporter.OutputDir, subject+"_t1_info.json")); err != nil {
		return err
	}
	if err := export.VolumeInfo(bold, filepath.Join(exporter.OutputDir, subject+"_bold_info.json")); err != nil {
		return err
	}

	if err := preview(exporter, t1, cmapT1, subject+"_t1_axial"); err != nil {
		return err
	}
	if err := preview(exporter, bold, cmapFMRI, subject+"_bold_axial"); err != nil {
		return err
	}

	if roundtrip {
		if err := verifyRoundTrip(exporter.OutputDir, subject+"_t1", t1); err != nil {
			return err
		}
		if err := verifyRoundTrip(exporter.OutputDir, subject+"_bold", bold); err != nil {
			return err
		}
	}

	return nil
}

// describe emits one geometry line and one stats line per volume, in the
// same column order for every subject so the output can be pasted into a
// spreadsheet.
func describe(subject, kind, path string, vol *nifti.Volume) {
	fmt.Printf("%s\t%s\t%s\t%d x %d x %d x %d\t%g x %g x %g mm\tTR=%gs\n",
		subject, kind, path,
		vol.Nx, vol.Ny, vol.Nz, vol.Nt,
		vol.PixDim[0], vol.PixDim[1], vol.PixDim[2],
		vol.TR)

	for i := 0; i < 4; i++ {
		fmt.Printf("%s\t%s\taffine[%d]\t%9.3f %9.3f %9.3f %9.3f\n",
			subject, kind, i,
			vol.Affine[i][0], vol.Affine[i][1], vol.Affine[i][2], vol.Affine[i][3])
	}

	sum, err := voxel.Summarize(vol)
	if err != nil {
		log.Printf("%s: %s stats unavailable: %v", subject, kind, err)
		return
	}
	fmt.Printf("%s\t%s\tintensity\tmin=%g max=%g mean=%.3f median=%.3f sd=%.3f\n",
		subject, kind, sum.Min, sum.Max, sum.Mean, sum.Median, sum.StdDev)
}

func preview(exporter *export.Exporter, vol *nifti.Volume, cmap render.Colormap, name string) error {
	_, max := vol.MinMax()
	mid := render.SliceCount(vol, render.Axial) / 2
	img := render.SliceRGBA(vol, render.Axial, mid, 0, float64(max), cmap)

	path, err := exporter.Figure(render.Label(img, name), name)
	if err != nil {
		return err
	}
	if path != "" {
		log.Println("wrote", path)
	}

	return nil
}

func verifyRoundTrip(dir, name string, vol *nifti.Volume) error {
	path := filepath.Join(dir, name+"_roundtrip.nii.gz")
	if err := nifti.Save(path, vol); err != nil {
		return err
	}

	back, err := nifti.Load(path)
	if err != nil {
		return err
	}

	if back.Nx != vol.Nx || back.Ny != vol.Ny || back.Nz != vol.Nz || back.Nt != vol.Nt {
		return neuroviz.DataErrorf("loaddata: round trip of %s changed dims from %d x %d x %d x %d to %d x %d x %d x %d",
			name, vol.Nx, vol.Ny, vol.Nz, vol.Nt, back.Nx, back.Ny, back.Nz, back.Nt)
	}
	if back.PixDim != vol.PixDim {
		return neuroviz.DataErrorf("loaddata: round trip of %s changed voxel size from %v to %v", name, vol.PixDim, back.PixDim)
	}

	log.Println("round trip ok:", path)

	return nil
}
