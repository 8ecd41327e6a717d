// mapfmri projects functional activity onto each subject's reconstructed
// cortical surface. Every vertex samples the fMRI series at its world
// coordinate under the configured interpolation and time statistic;
// vertices outside the functional field of view read zero. The scalar field
// is then smoothed with the same shrink-free filter used on the geometry,
// and the mesh is written to the results directory with the activations
// attached as point data.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/fmrimap"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/runlog"
	"github.com/neuroviz/neuroviz/surface"
)

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

	exporter, err := export.NewExporter(cfg)
	if err != nil {
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
		err := ledger.Record(runID, "map", subject, func() error {
			return mapOne(cfg, layout, exporter, subject)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// loadSurface accepts either mesh format the reconstruction stage can emit.
func loadSurface(layout *bids.Layout, subject string) (*surface.Mesh, error) {
	path := layout.SurfacePath(subject)
	if _, err := os.Stat(path); err != nil {
		alt := strings.TrimSuffix(path, ".vtk") + ".stl"
		if _, altErr := os.Stat(alt); altErr != nil {
			return nil, neuroviz.DataErrorf("mapfmri: %s: surface %s is absent; run reconsurface first", subject, path)
		}
		path = alt
	}

	return surface.Load(path)
}

func mapOne(cfg *config.Config, layout *bids.Layout, exporter *export.Exporter, subject string) error {
	mesh, err := loadSurface(layout, subject)
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

	coverage := fmrimap.Coverage(mesh, bold)
	log.Printf("%s: %.1f%% of %d vertices fall inside the functional field of view",
		subject, 100*coverage, mesh.VertexCount())

	mapped, err := fmrimap.Map(mesh, bold, fmrimap.Options{
		Mapping:   cfg.MRI.FMRIMapping,
		Statistic: cfg.MRI.FMRIStatistic,
		Timepoint: cfg.MRI.FMRITimepoint,
	})
	if err != nil {
		return err
	}

	// The same windowed smoothing that polished the geometry also damps
	// voxel-grid banding in the sampled activations.
	mapped = mapped.SmoothScalars(cfg.MRI.ScalarSmoothIterations, cfg.MRI.ScalarSmoothPassband)

	out := layout.MappedSurfacePath(subject)
	if err := bids.EnsureParent(out); err != nil {
		return err
	}
	if err := surface.Save(out, mapped, subject+" fMRI on surface"); err != nil {
		return err
	}
	log.Printf("%s: wrote %s", subject, out)

	if exporter.SaveFigures {
		cmap, err := render.ColormapByName(cfg.Visualization.ColormapFMRI)
		if err != nil {
			return err
		}

		preview := render.SurfaceImage(mapped, render.SurfaceOptions{
			Width:      cfg.GUI.WindowWidth,
			Height:     cfg.GUI.WindowHeight,
			Azimuth:    30,
			Elevation:  20,
			Background: cfg.GUI.Background,
			Colormap:   cmap,
			Saturation: cfg.Visualization.ScalarSaturation,
		})

		top := render.ScalarScaleTop(mapped.Scalars, cfg.Visualization.ScalarSaturation)
		preview = render.WithColorbar(preview, cmap, 0, top)

		path, err := exporter.Figure(preview, subject+"_mapped_surface")
		if err != nil {
			return err
		}
		log.Printf("%s: wrote %s", subject, path)

		dataPath, err := exporter.Data(mapped, subject+"_vertex_activations")
		if err != nil {
			return err
		}
		log.Printf("%s: wrote %s", subject, dataPath)
	}

	fmt.Printf("%s\t%d vertices\t%s\n", subject, mapped.VertexCount(), statLabel(cfg))

	return nil
}

func statLabel(cfg *config.Config) string {
	if cfg.MRI.FMRIStatistic == "mean" {
		return "mean over frames"
	}

	return fmt.Sprintf("frame %d", cfg.MRI.FMRITimepoint)
}
