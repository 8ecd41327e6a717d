// eegreport summarizes each subject's EEG recording and writes the
// band-passed version into the derivatives tree as a new EDF. Alongside the
// filtered recording it renders a stacked trace figure and one Welch power
// spectrum per channel, and prints a per-channel table with the peak
// frequency after filtering.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/eeg"
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/runlog"
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
		return neuroviz.DataErrorf("eegreport: %v", err)
	}

	ledger, err := runlog.Open(layout.RunLogPath())
	if err != nil {
		log.Println(err)
		ledger = nil
	}
	defer ledger.Close()

	runID, err := ledger.StartRun(cfg.ProjectName, configPath)
	if err != nil {
		log.Println(err)
	}

	for _, subject := range cfg.Subjects {
		err := ledger.Record(runID, "eeg", subject, func() error {
			return reportOne(cfg, layout, out, subject)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func reportOne(cfg *config.Config, layout *bids.Layout, out, subject string) error {
	eegPath, err := layout.ResolveEEG(subject)
	if err != nil {
		return err
	}

	rec, err := eeg.LoadEDF(eegPath)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", subject, rec.Describe())
	fmt.Printf("%s\tpatient=%q recording=%q start=%s %s\n",
		subject, rec.PatientID, rec.RecordingID, rec.StartDate, rec.StartTime)

	rec, err = rec.Select(cfg.EEG.Channels)
	if err != nil {
		return err
	}

	names := rec.Labels()
	filtered := make([][]float64, len(rec.Channels))

	for i := range rec.Channels {
		ch := &rec.Channels[i]

		filtered[i], err = eeg.BandPass(ch.Samples, cfg.EEG.HighpassHz, cfg.EEG.LowpassHz, rec.SampleRate(i))
		if err != nil {
			return err
		}

		spectrum, err := eeg.WelchPSD(filtered[i], rec.SampleRate(i), cfg.EEG.PSDSegmentSec)
		if err != nil {
			return err
		}

		fmt.Printf("%s\t%s\t%g Hz\t[%g, %g] %s\tpeak %.2f Hz\n",
			subject, ch.Label, rec.SampleRate(i),
			ch.PhysicalMin, ch.PhysicalMax, ch.PhysicalDim,
			spectrum.PeakFrequency())

		psdPath := filepath.Join(out, fmt.Sprintf("%s_eeg_psd_%s.png", subject, ch.Label))
		if err := writeChart(psdPath, func(w *bufio.Writer) error {
			title := fmt.Sprintf("%s %s PSD", subject, ch.Label)
			return render.PlotTracePNG(w, title, spectrum.Freqs, spectrum.DB(), cfg.GUI.WindowWidth, chartHeight, 0, 0)
		}); err != nil {
			return err
		}
	}

	tracePath := filepath.Join(out, subject+"_eeg_filtered.png")
	if err := writeChart(tracePath, func(w *bufio.Writer) error {
		title := fmt.Sprintf("%s EEG %g-%g Hz", subject, cfg.EEG.HighpassHz, cfg.EEG.LowpassHz)
		return render.PlotStackedTracesPNG(w, title, names, filtered, rec.SampleRate(0), cfg.GUI.WindowWidth, chartHeight*2)
	}); err != nil {
		return err
	}

	return writeFiltered(cfg, layout, subject, rec, filtered)
}

// writeFiltered stores the band-passed channels as a derivative EDF, with
// the prefiltering field updated so downstream readers know what was
// applied.
func writeFiltered(cfg *config.Config, layout *bids.Layout, subject string, rec *eeg.Recording, filtered [][]float64) error {
	outRec := *rec
	outRec.Channels = append([]eeg.Channel(nil), rec.Channels...)

	for i := range outRec.Channels {
		outRec.Channels[i].Samples = filtered[i]
		outRec.Channels[i].Prefiltering = fmt.Sprintf("HP:%gHz LP:%gHz", cfg.EEG.HighpassHz, cfg.EEG.LowpassHz)

		// The raw calibration no longer covers the filtered range; let the
		// writer derive fresh scaling from the data.
		outRec.Channels[i].PhysicalMin = 0
		outRec.Channels[i].PhysicalMax = 0
		outRec.Channels[i].DigitalMin = 0
		outRec.Channels[i].DigitalMax = 0
	}

	path := layout.FilteredEEGPath(subject)
	if err := bids.EnsureParent(path); err != nil {
		return err
	}
	if err := eeg.SaveEDF(path, &outRec); err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, path)

	return nil
}

func writeChart(path string, plot func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return neuroviz.DataErrorf("eegreport: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := plot(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return neuroviz.DataErrorf("eegreport: %v", err)
	}
	log.Println("wrote", path)

	return nil
}
