// validatet1 runs acquisition checks on each subject's anatomical volume
// before any preprocessing is attempted: intensity range and whether
// rescaling will be needed, axial orientation, an edge-clarity score from
// the middle slice gradient, and a terminal histogram of the intensity
// distribution. Subjects that fail any check are listed in the final error
// so the tool exits nonzero for scripting.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aybabtme/uniplot/histogram"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/voxel"
)

// edgeThreshold is the normalized gradient magnitude above which a pixel
// counts as an edge.
const edgeThreshold = 0.1

const maxHistSamples = 1 << 20

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

	var failed []string
	for _, subject := range cfg.Subjects {
		problems, err := validateOne(layout, subject)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			failed = append(failed, fmt.Sprintf("%s (%s)", subject, strings.Join(problems, "; ")))
		}
	}

	if len(failed) > 0 {
		return neuroviz.DataErrorf("validatet1: %d of %d subject(s) failed validation: %s",
			len(failed), len(cfg.Subjects), strings.Join(failed, ", "))
	}

	log.Printf("all %d subject(s) passed", len(cfg.Subjects))

	return nil
}

func validateOne(layout *bids.Layout, subject string) ([]string, error) {
	path, err := layout.ResolveT1(subject)
	if err != nil {
		return nil, err
	}

	vol, err := nifti.Load(path)
	if err != nil {
		return nil, err
	}

	fmt.Printf("%s\t%s\t%d x %d x %d\n", subject, path, vol.Nx, vol.Ny, vol.Nz)

	var problems []string

	sum, err := voxel.Summarize(vol)
	if err != nil {
		return nil, neuroviz.DataErrorf("validatet1: %s: %v", subject, err)
	}
	fmt.Printf("%s\tintensity\tmin=%g max=%g mean=%.3f median=%.3f sd=%.3f\n",
		subject, sum.Min, sum.Max, sum.Mean, sum.Median, sum.StdDev)

	if sum.Max <= sum.Min {
		problems = append(problems, "volume has constant intensity")
	}

	if voxel.NeedsRescale(vol, 0, 255) {
		fmt.Printf("%s\trange\toutside [0, 255]; preprocessing will rescale\n", subject)
	} else {
		fmt.Printf("%s\trange\talready within [0, 255]\n", subject)
	}

	if vol.AxialPositive() {
		fmt.Printf("%s\torientation\taxial axis points superior\n", subject)
	} else {
		problems = append(problems, "axial axis does not point superior")
		fmt.Printf("%s\torientation\tFAIL: axial axis does not point superior\n", subject)
	}

	clarity := voxel.EdgeClarity(vol, edgeThreshold)
	if clarity >= voxel.ClearEdgeCriterion {
		fmt.Printf("%s\tedges\tclarity %.4f (criterion %.2f)\n", subject, clarity, voxel.ClearEdgeCriterion)
	} else {
		problems = append(problems, fmt.Sprintf("edge clarity %.4f below %.2f", clarity, voxel.ClearEdgeCriterion))
		fmt.Printf("%s\tedges\tFAIL: clarity %.4f below criterion %.2f\n", subject, clarity, voxel.ClearEdgeCriterion)
	}

	if err := printHistogram(vol); err != nil {
		return nil, err
	}

	return problems, nil
}

func printHistogram(vol *nifti.Volume) error {
	// Subsample large volumes so the histogram stays cheap.
	stride := len(vol.Data)/maxHistSamples + 1

	sample := make([]float64, 0, len(vol.Data)/stride+1)
	for i := 0; i < len(vol.Data); i += stride {
		sample = append(sample, float64(vol.Data[i]))
	}

	hist := histogram.Hist(20, sample)

	return histogram.Fprint(os.Stdout, hist, histogram.Linear(40))
}
