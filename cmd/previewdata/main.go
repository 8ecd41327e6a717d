// previewdata renders diagnostic figures for every configured subject: a
// three-plane montage of the anatomical volume, the first functional frame
// with the time course of the center voxel, and the EEG channels after
// band-pass filtering together with their Welch power spectra. Nothing it
// writes feeds a later stage; the figures exist so a human can reject bad
// acquisitions early.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/eeg"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/render"
)

const chartHeight = 320

func main() {
	var configPath string

	flag.StringVar(&configPath, "config", "", "Path to the project YAML settings file.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(configPath); err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	layout, err := bids.NewLayout(cfg)
	if err != nil {
		return err
	}

	out, err := cfg.OutputRoot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return neuroviz.DataErrorf("previewdata: %v", err)
	}

	for _, subject := range cfg.Subjects {
		if err := previewMRI(cfg, layout, out, subject); err != nil {
			return err
		}
		if err := previewEEG(cfg, layout, out, subject); err != nil {
			return err
		}
	}

	return nil
}

func previewMRI(cfg *config.Config, layout *bids.Layout, out, subject string) error {
	cmapT1, err := render.ColormapByName(cfg.Visualization.ColormapT1)
	if err != nil {
		return err
	}
	cmapFMRI, err := render.ColormapByName(cfg.Visualization.ColormapFMRI)
	if err != nil {
		return err
	}

	t1Path, err := layout.ResolveT1(subject)
	if err != nil {
		return err
	}
	t1, err := nifti.Load(t1Path)
	if err != nil {
		return err
	}

	montage := render.ThreeView(t1, 0, cfg.Visualization.SlicePlanes, cmapT1)
	if err := writeStill(cfg, montage, filepath.Join(out, subject+"_t1_threeview")); err != nil {
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

	_, max := bold.MinMax()
	mid := render.SliceCount(bold, render.Axial) / 2
	frame0 := render.SliceRGBA(bold, render.Axial, mid, 0, float64(max), cmapFMRI)
	if err := writeStill(cfg, frame0, filepath.Join(out, subject+"_bold_frame0")); err != nil {
		return err
	}

	// Center-voxel time course. A flat line here usually means the series
	// was exported without its time axis.
	series := bold.TimeSeriesAt(bold.Nx/2, bold.Ny/2, bold.Nz/2)
	times := make([]float64, len(series))
	values := make([]float64, len(series))
	for i, v := range series {
		times[i] = float64(i) * bold.TR
		values[i] = float64(v)
	}

	tracePath := filepath.Join(out, subject+"_bold_center_timecourse.png")
	if err := writeChart(tracePath, func(w *bufio.Writer) error {
		return render.PlotTracePNG(w, subject+" center voxel", times, values, cfg.GUI.WindowWidth, chartHeight, 0, 0)
	}); err != nil {
		return err
	}

	return nil
}

func previewEEG(cfg *config.Config, layout *bids.Layout, out, subject string) error {
	eegPath, err := layout.ResolveEEG(subject)
	if err != nil {
		// EEG is optional for imaging-only subjects.
		log.Printf("%s: skipping EEG preview: %v", subject, err)
		return nil
	}

	rec, err := eeg.LoadEDF(eegPath)
	if err != nil {
		return err
	}

	rec, err = rec.Select(cfg.EEG.Channels)
	if err != nil {
		return err
	}

	fmt.Println(subject + "\t" + rec.Describe())

	names := rec.Labels()
	filtered := make([][]float64, len(rec.Channels))

	rate := rec.SampleRate(0)
	if cfg.EEG.SamplingRate > 0 && rate != cfg.EEG.SamplingRate {
		log.Printf("%s: EEG header says %g Hz but settings expect %g Hz", subject, rate, cfg.EEG.SamplingRate)
	}

	for i := range rec.Channels {
		filtered[i], err = eeg.BandPass(rec.Channels[i].Samples, cfg.EEG.HighpassHz, cfg.EEG.LowpassHz, rec.SampleRate(i))
		if err != nil {
			return err
		}
	}

	tracePath := filepath.Join(out, subject+"_eeg_filtered.png")
	if err := writeChart(tracePath, func(w *bufio.Writer) error {
		title := fmt.Sprintf("%s EEG %g-%g Hz", subject, cfg.EEG.HighpassHz, cfg.EEG.LowpassHz)
		return render.PlotStackedTracesPNG(w, title, names, filtered, rate, cfg.GUI.WindowWidth, chartHeight*2)
	}); err != nil {
		return err
	}

	for i, samples := range filtered {
		spectrum, err := eeg.WelchPSD(samples, rec.SampleRate(i), cfg.EEG.PSDSegmentSec)
		if err != nil {
			return err
		}

		psdPath := filepath.Join(out, fmt.Sprintf("%s_eeg_psd_%s.png", subject, names[i]))
		if err := writeChart(psdPath, func(w *bufio.Writer) error {
			title := fmt.Sprintf("%s %s PSD (peak %.1f Hz)", subject, names[i], spectrum.PeakFrequency())
			return render.PlotTracePNG(w, title, spectrum.Freqs, spectrum.DB(), cfg.GUI.WindowWidth, chartHeight, 0, 0)
		}); err != nil {
			return err
		}
	}

	return nil
}

// writeStill saves a slice image in the configured figure format. Previews
// ignore export.save_figures: running this tool is the request for figures.
func writeStill(cfg *config.Config, img image.Image, pathNoExt string) error {
	path := pathNoExt + "." + cfg.Export.FigureFormat
	if err := export.WriteFigure(img, path, cfg.Export.FigureFormat, cfg.Export.FigureDPI); err != nil {
		return err
	}
	log.Println("wrote", path)

	return nil
}

func writeChart(path string, plot func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return neuroviz.DataErrorf("previewdata: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := plot(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return neuroviz.DataErrorf("previewdata: %v", err)
	}
	log.Println("wrote", path)

	return nil
}
