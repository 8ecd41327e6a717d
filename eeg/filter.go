package eeg

import (
	"math"

	"github.com/jfcg/butter"

	"github.com/neuroviz/neuroviz"
)

// BandPass runs the signal through chained first-order Butterworth sections,
// low-pass first, then high-pass. Cutoffs are in Hz against the given
// sampling rate.
func BandPass(vals []float64, highPassHz, lowPassHz, rate float64) ([]float64, error) {
	if rate <= 0 {
		return nil, neuroviz.ConfigErrorf("eeg: sampling rate %g is not positive", rate)
	}

	wcBase := 2.0 * math.Pi / rate

	filt := butter.NewHighPass1(highPassHz * wcBase)
	filtL := butter.NewLowPass1(lowPassHz * wcBase)

	if filt == nil {
		return nil, neuroviz.ConfigErrorf("eeg: invalid high-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wcBase*highPassHz)
	}

	if filtL == nil {
		return nil, neuroviz.ConfigErrorf("eeg: invalid low-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wcBase*lowPassHz)
	}

	out := make([]float64, 0, len(vals))
	for _, vf := range vals {
		out = append(out, filt.Next(filtL.Next(vf)))
	}

	return out, nil
}
