// preprocesst1 runs the anatomical cleanup chain for every configured
// subject: bias-field correction, rescale to [0, 255], contrast-limited
// adaptive equalization, and edge-preserving bilateral smoothing, written
// into preprocessed_anat/ under the derivatives tree. It then calls FSL to
// skull-strip (bet) and tissue-segment (fast) the result into
// segment_t1_fsl/, and finishes each subject with a tissue overlay figure
// on the middle slice for visual QC. FSL must be installed and on PATH;
// the tool probes for it before touching any subject.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/fsl"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/overlay"
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/runlog"
	"github.com/neuroviz/neuroviz/voxel"
)

// segOpacity keeps the anatomy readable underneath the tissue colors.
const segOpacity = 0.45

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
	log.Println(cfg.Describe())

	layout, err := bids.NewLayout(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Fail before any per-subject work if FSL is absent.
	if err := fsl.Verify(ctx, "bet", "fast"); err != nil {
		return err
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
		err := ledger.Record(runID, "preprocess", subject, func() error {
			return preprocessOne(ctx, cfg, layout, subject)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func preprocessOne(ctx context.Context, cfg *config.Config, layout *bids.Layout, subject string) error {
	// Preprocessing always starts from the raw acquisition, never from its
	// own previous output.
	rawPath := layout.T1Path(subject)

	vol, err := nifti.Load(rawPath)
	if err != nil {
		return err
	}

	if vol.Is4D() {
		log.Printf("%s: anatomical volume has %d frames; using the first", subject, vol.Nt)
		if vol, err = vol.VolumeAt(0); err != nil {
			return err
		}
	}

	log.Printf("%s: bias correction (shrink %d)", subject, cfg.MRI.BiasShrink)
	vol = voxel.BiasCorrect(vol, cfg.MRI.BiasShrink)

	log.Printf("%s: rescale to [0, 255]", subject)
	vol = voxel.Rescale(vol, 0, 255)

	log.Printf("%s: adaptive equalization (clip %g)", subject, cfg.MRI.CLAHEClip)
	vol = voxel.AdaptiveEqualize(vol, cfg.MRI.CLAHEClip)

	log.Printf("%s: bilateral smoothing (domain %g, range %g)", subject, cfg.MRI.BilateralDomainSigma, cfg.MRI.BilateralRangeSigma)
	vol = voxel.Bilateral(vol, cfg.MRI.BilateralDomainSigma, cfg.MRI.BilateralRangeSigma)

	outPath := layout.PreprocessedT1Path(subject)
	if err := bids.EnsureParent(outPath); err != nil {
		return err
	}

	vol.Hdr.SetDescript("neuroviz preprocess")
	if err := nifti.Save(outPath, vol); err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, outPath)

	brainPath := layout.BrainPath(subject)
	if err := bids.EnsureParent(brainPath); err != nil {
		return err
	}

	bet := fsl.BET(outPath, brainPath, cfg.MRI.BETFractionalIntensity)
	log.Printf("%s: %s", subject, bet)
	if err := fsl.Run(ctx, bet); err != nil {
		return err
	}

	fast := fsl.FAST(brainPath, strings.TrimSuffix(brainPath, ".nii.gz"), cfg.MRI.FASTClasses)
	log.Printf("%s: %s", subject, fast)
	if err := fsl.Run(ctx, fast); err != nil {
		return err
	}

	log.Printf("%s: segmentation complete", subject)

	return writeSegmentationQC(cfg, subject, brainPath)
}

// writeSegmentationQC colors the fast hard segmentation over the
// skull-stripped anatomy on the middle axial slice and logs per-tissue
// pixel and region counts. A tissue split into confetti, or one that
// swallowed the whole head, is obvious at a glance here and invisible in
// the run log otherwise.
func writeSegmentationQC(cfg *config.Config, subject, brainPath string) error {
	segPath := strings.TrimSuffix(brainPath, ".nii.gz") + "_seg.nii.gz"

	seg, err := nifti.Load(segPath)
	if err != nil {
		return err
	}
	brain, err := nifti.Load(brainPath)
	if err != nil {
		return err
	}

	mid := seg.Nz / 2
	grid, err := overlay.AxialClasses(seg, mid)
	if err != nil {
		return err
	}

	labels := overlay.FASTLabels(cfg.MRI.FASTClasses)
	counts := grid.Counts()
	regions := grid.Regions()
	for _, l := range labels {
		if l.ID == 0 {
			continue
		}
		log.Printf("%s: plane %d: %s covers %d pixels in %d regions", subject, mid, l.Name, counts[l.ID], regions[l.ID])
	}

	mask, err := grid.Colorize(labels)
	if err != nil {
		return err
	}

	cmap, err := render.ColormapByName(cfg.Visualization.ColormapT1)
	if err != nil {
		return err
	}
	_, max := brain.MinMax()
	base := render.SliceRGBA(brain, render.Axial, mid, 0, float64(max), cmap)

	qc := render.CompositeOverlay(base, mask, segOpacity)

	exporter, err := export.NewExporter(cfg)
	if err != nil {
		return err
	}
	exporter.SaveFigures = true // QC is the point of this figure

	path, err := exporter.Figure(render.Label(qc, subject+" tissue QC"), subject+"_segmentation_qc")
	if err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, path)

	return nil
}
