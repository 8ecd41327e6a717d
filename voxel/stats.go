package voxel

import (
	"github.com/montanaflynn/stats"

	"github.com/neuroviz/neuroviz/nifti"
)

// Summary describes a volume's intensity distribution. Printed by the
// loader and previewer and embedded in exported dataset descriptions.
type Summary struct {
	NVox   int     `json:"n_voxels"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

func Summarize(vol *nifti.Volume) (Summary, error) {
	data := stats.LoadRawData(vol.Data)

	out := Summary{NVox: data.Len()}

	var err error
	if out.Min, err = data.Min(); err != nil {
		return out, err
	}
	if out.Max, err = data.Max(); err != nil {
		return out, err
	}
	if out.Mean, err = data.Mean(); err != nil {
		return out, err
	}
	if out.Median, err = data.Median(); err != nil {
		return out, err
	}
	if out.StdDev, err = data.StandardDeviation(); err != nil {
		return out, err
	}

	return out, nil
}
