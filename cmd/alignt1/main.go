// alignt1 registers each subject's preprocessed anatomical volume with FSL,
// choosing flirt (rigid or affine) or fnirt per the configured alignment
// mode. The registration target comes from mri.alignment_reference; when
// that is empty the subject's own raw acquisition is used, so the output
// stays in native space. After registration the tool thresholds the aligned
// volume, extracts a quick marching-cubes surface, and writes an overlay of
// that surface's silhouette on the middle slice for visual QC.
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
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/runlog"
	"github.com/neuroviz/neuroviz/surface"
	"github.com/neuroviz/neuroviz/voxel"
)

// qcOpacity matches the faint surface silhouette of the interactive
// overlay inspection.
const qcOpacity = 0.35

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

	tools := []string{"flirt"}
	if cfg.MRI.AlignmentMode == "nonlinear" {
		tools = append(tools, "fnirt")
	}
	if err := fsl.Verify(ctx, tools...); err != nil {
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
		err := ledger.Record(runID, "align", subject, func() error {
			return alignOne(ctx, cfg, layout, subject)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func alignOne(ctx context.Context, cfg *config.Config, layout *bids.Layout, subject string) error {
	in := layout.PreprocessedT1Path(subject)
	if _, err := os.Stat(in); err != nil {
		return neuroviz.DataErrorf("alignt1: %s: preprocessed volume %s is absent; run preprocesst1 first", subject, in)
	}

	ref := cfg.MRI.AlignmentReference
	if ref == "" {
		ref = layout.T1Path(subject)
	} else {
		var err error
		if ref, err = neuroviz.ExpandHome(ref); err != nil {
			return err
		}
	}
	if _, err := os.Stat(ref); err != nil {
		return neuroviz.DataErrorf("alignt1: %s: registration target %s is absent", subject, ref)
	}

	out := layout.AlignedT1Path(subject)
	if err := bids.EnsureParent(out); err != nil {
		return err
	}
	omat := strings.TrimSuffix(out, ".nii.gz") + ".mat"

	cmd, err := fsl.Alignment(cfg.MRI.AlignmentMode, in, ref, out, omat)
	if err != nil {
		return err
	}

	log.Printf("%s: %s", subject, cmd)
	if err := fsl.Run(ctx, cmd); err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, out)

	return writeQCOverlay(cfg, subject, out)
}

// writeQCOverlay draws a quick thresholded surface over the aligned
// volume's middle slice. Gross registration failures show up as a
// silhouette that no longer hugs the anatomy.
func writeQCOverlay(cfg *config.Config, subject, alignedPath string) error {
	vol, err := nifti.Load(alignedPath)
	if err != nil {
		return err
	}

	mask := voxel.ThresholdBinary(vol, float32(cfg.MRI.ThresholdLow), float32(cfg.MRI.ThresholdHigh))
	mesh := surface.FromVolume(mask, 0, 0.5)
	if mesh.FaceCount() == 0 {
		log.Printf("%s: threshold window [%g, %g] selected nothing; skipping QC overlay",
			subject, cfg.MRI.ThresholdLow, cfg.MRI.ThresholdHigh)
		return nil
	}
	mesh = mesh.LaplacianSmooth(cfg.MRI.LaplacianIterations, cfg.MRI.LaplacianRelaxation)
	log.Printf("%s: QC surface has %d vertices, %d faces", subject, mesh.VertexCount(), mesh.FaceCount())

	cmap, err := render.ColormapByName(cfg.Visualization.ColormapT1)
	if err != nil {
		return err
	}

	_, max := vol.MinMax()
	mid := render.SliceCount(vol, render.Axial) / 2
	base := render.SliceRGBA(vol, render.Axial, mid, 0, float64(max), cmap)

	silhouette := render.SurfaceImage(mesh, render.SurfaceOptions{
		Width:       base.Bounds().Dx(),
		Height:      base.Bounds().Dy(),
		Elevation:   90,
		Transparent: true,
	})

	overlay := render.CompositeOverlay(base, silhouette, qcOpacity)

	exporter, err := export.NewExporter(cfg)
	if err != nil {
		return err
	}
	exporter.SaveFigures = true // QC is the point of this stage

	path, err := exporter.Figure(render.Label(overlay, subject+" alignment QC"), subject+"_align_qc")
	if err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, path)

	return nil
}
