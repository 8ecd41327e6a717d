package eeg

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/neuroviz/neuroviz"
)

// Spectrum is a one-sided power spectral density estimate.
type Spectrum struct {
	Freqs []float64 // Hz
	Power []float64 // units^2/Hz
}

// PeakFrequency returns the frequency of the strongest bin above DC.
func (s *Spectrum) PeakFrequency() float64 {
	best := 1
	for i := 2; i < len(s.Power); i++ {
		if s.Power[i] > s.Power[best] {
			best = i
		}
	}
	if best >= len(s.Freqs) {
		return 0
	}

	return s.Freqs[best]
}

// DB returns the power values as decibels for plotting on a linear axis.
func (s *Spectrum) DB() []float64 {
	out := make([]float64, len(s.Power))
	for i, p := range s.Power {
		if p <= 0 {
			p = 1e-20
		}
		out[i] = 10 * math.Log10(p)
	}

	return out
}

// WelchPSD estimates the power spectral density by averaging Hann-windowed,
// half-overlapping segments of segmentSec seconds. Segments are demeaned
// before windowing.
func WelchPSD(vals []float64, rate, segmentSec float64) (*Spectrum, error) {
	if rate <= 0 {
		return nil, neuroviz.ConfigErrorf("eeg: sampling rate %g is not positive", rate)
	}
	if segmentSec <= 0 {
		return nil, neuroviz.ConfigErrorf("eeg: segment length %g is not positive", segmentSec)
	}

	nperseg := int(math.Round(rate * segmentSec))
	if nperseg > len(vals) {
		nperseg = len(vals)
	}
	if nperseg < 8 {
		return nil, neuroviz.DataErrorf("eeg: %d samples are too few for a %gs segment at %gHz",
			len(vals), segmentSec, rate)
	}

	step := nperseg / 2

	win := window.Hann(ones(nperseg))
	var winPower float64
	for _, w := range win {
		winPower += w * w
	}

	fft := fourier.NewFFT(nperseg)
	nbins := nperseg/2 + 1

	power := make([]float64, nbins)
	seg := make([]float64, nperseg)
	coeffs := make([]complex128, nbins)

	nseg := 0
	for start := 0; start+nperseg <= len(vals); start += step {
		copy(seg, vals[start:start+nperseg])

		var mean float64
		for _, v := range seg {
			mean += v
		}
		mean /= float64(nperseg)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}

		coeffs = fft.Coefficients(coeffs, seg)
		for i, c := range coeffs {
			re, im := real(c), imag(c)
			power[i] += re*re + im*im
		}
		nseg++
	}

	// One-sided density scaling; interior bins carry both halves of the
	// spectrum.
	scale := 1 / (rate * winPower * float64(nseg))
	for i := range power {
		power[i] *= scale
		if i > 0 && !(nperseg%2 == 0 && i == nbins-1) {
			power[i] *= 2
		}
	}

	freqs := make([]float64, nbins)
	for i := range freqs {
		freqs[i] = float64(i) * rate / float64(nperseg)
	}

	return &Spectrum{Freqs: freqs, Power: power}, nil
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}
