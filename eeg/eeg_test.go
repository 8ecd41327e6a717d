package eeg

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/neuroviz/neuroviz"
)

func makeSine(n int, freq, rate, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}

	return out
}

func rms(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(vals)))
}

func twoChannelRecording() *Recording {
	return &Recording{
		PatientID:      "sub-001",
		RecordingID:    "task-eoec run-1",
		StartDate:      "12.03.24",
		StartTime:      "09.30.00",
		RecordDuration: 1,
		Channels: []Channel{
			{
				Label:            "Fp1",
				PhysicalDim:      "uV",
				PhysicalMin:      -200,
				PhysicalMax:      200,
				DigitalMin:       -32768,
				DigitalMax:       32767,
				SamplesPerRecord: 128,
				Samples:          makeSine(256, 10, 128, 50),
			},
			{
				// No calibration; the writer derives one from the data.
				Label:            "O2",
				PhysicalDim:      "uV",
				SamplesPerRecord: 128,
				Samples:          makeSine(256, 8, 128, 50),
			},
		},
	}
}

func TestEDFRoundTrip(t *testing.T) {
	rec := twoChannelRecording()

	var buf bytes.Buffer
	if err := WriteEDF(&buf, rec); err != nil {
		t.Fatalf("WriteEDF() error: %v", err)
	}
	if got, want := buf.Len(), 256*3+2*2*2*128; got != want {
		t.Errorf("encoded %d bytes, want %d", got, want)
	}

	back, err := ReadEDF(&buf)
	if err != nil {
		t.Fatalf("ReadEDF() error: %v", err)
	}

	if back.PatientID != "sub-001" || back.RecordingID != "task-eoec run-1" {
		t.Errorf("identification fields lost: %q / %q", back.PatientID, back.RecordingID)
	}
	if back.StartDate != "12.03.24" || back.StartTime != "09.30.00" {
		t.Errorf("start stamp lost: %q %q", back.StartDate, back.StartTime)
	}
	if back.NumRecords != 2 || back.RecordDuration != 1 {
		t.Errorf("got %d records of %gs, want 2 of 1s", back.NumRecords, back.RecordDuration)
	}
	if got := back.Duration(); got != 2 {
		t.Errorf("Duration() = %g, want 2", got)
	}

	if len(back.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(back.Channels))
	}
	for c := range back.Channels {
		if back.Channels[c].Label != rec.Channels[c].Label {
			t.Errorf("channel %d label = %q, want %q", c, back.Channels[c].Label, rec.Channels[c].Label)
		}
		if got := back.SampleRate(c); got != 128 {
			t.Errorf("SampleRate(%d) = %g, want 128", c, got)
		}

		want := rec.Channels[c].Samples
		got := back.Channels[c].Samples
		if len(got) != len(want) {
			t.Fatalf("channel %d has %d samples, want %d", c, len(got), len(want))
		}
		for i := range want {
			if math.Abs(got[i]-want[i]) > 0.01 {
				t.Fatalf("channel %d sample %d = %g, want %g within quantization", c, i, got[i], want[i])
			}
		}
	}
}

func TestChannelSelect(t *testing.T) {
	rec := twoChannelRecording()

	sub, err := rec.Select([]string{"O2"})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if len(sub.Channels) != 1 || sub.Channels[0].Label != "O2" {
		t.Errorf("Select kept %v, want just O2", sub.Labels())
	}

	if all, err := rec.Select(nil); err != nil || len(all.Channels) != 2 {
		t.Errorf("empty selection should keep all channels, got %v (%v)", all.Labels(), err)
	}

	_, err = rec.Select([]string{"Cz"})
	if err == nil {
		t.Fatal("expected an error for an absent channel")
	}
	var dataErr *neuroviz.DataError
	if !errors.As(err, &dataErr) {
		t.Errorf("error should classify as a data error, got %T", err)
	}
}

func TestWriteEDFRejectsRaggedChannels(t *testing.T) {
	rec := twoChannelRecording()
	rec.Channels[1].Samples = rec.Channels[1].Samples[:100]

	var buf bytes.Buffer
	if err := WriteEDF(&buf, rec); err == nil {
		t.Fatal("expected an error for a partial record")
	}

	rec.Channels[1].Samples = makeSine(128, 8, 128, 50) // one record vs two
	if err := WriteEDF(&buf, rec); err == nil {
		t.Fatal("expected an error for mismatched record counts")
	}
}

func TestBandPassRemovesDrift(t *testing.T) {
	in := make([]float64, 256)
	for i := range in {
		in[i] = 10
	}

	out, err := BandPass(in, 0.5, 40, 256)
	if err != nil {
		t.Fatalf("BandPass() error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}

	if last := math.Abs(out[len(out)-1]); last > 0.5 {
		t.Errorf("constant offset should decay: final sample %g", last)
	}
}

func TestBandPassFrequencyResponse(t *testing.T) {
	const rate = 256.0
	settle := int(rate) // skip the first second of transient

	inBand := makeSine(4*int(rate), 5, rate, 1)
	outSig, err := BandPass(inBand, 0.5, 40, rate)
	if err != nil {
		t.Fatalf("BandPass() error: %v", err)
	}
	if ratio := rms(outSig[settle:]) / rms(inBand[settle:]); ratio < 0.8 {
		t.Errorf("5Hz should pass nearly untouched, got gain %g", ratio)
	}

	outOfBand := makeSine(4*int(rate), 100, rate, 1)
	outSig, err = BandPass(outOfBand, 0.5, 40, rate)
	if err != nil {
		t.Fatalf("BandPass() error: %v", err)
	}
	if ratio := rms(outSig[settle:]) / rms(outOfBand[settle:]); ratio > 0.55 {
		t.Errorf("100Hz should attenuate, got gain %g", ratio)
	}
}

func TestBandPassInvalidSetup(t *testing.T) {
	cases := []struct {
		name              string
		highPass, lowPass float64
		rate              float64
	}{
		{"zero high-pass", 0, 40, 256},
		{"low-pass above nyquist", 0.5, 200, 256},
		{"zero rate", 0.5, 40, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BandPass(make([]float64, 16), tc.highPass, tc.lowPass, tc.rate)
			if err == nil {
				t.Fatal("expected an error")
			}

			var confErr *neuroviz.ConfigError
			if !errors.As(err, &confErr) {
				t.Errorf("error should classify as a config error, got %T", err)
			}
		})
	}
}

func TestWelchPSDPeak(t *testing.T) {
	const rate = 128.0
	sig := makeSine(8*int(rate), 10, rate, 1)

	spec, err := WelchPSD(sig, rate, 2)
	if err != nil {
		t.Fatalf("WelchPSD() error: %v", err)
	}

	// 2s segments at 128Hz give 0.5Hz bins, so 10Hz sits exactly on bin 20.
	if got := spec.PeakFrequency(); got != 10 {
		t.Errorf("PeakFrequency() = %g, want 10", got)
	}

	df := spec.Freqs[1] - spec.Freqs[0]
	if df != 0.5 {
		t.Errorf("bin width = %g, want 0.5", df)
	}

	var total float64
	for _, p := range spec.Power {
		total += p * df
	}
	// Integrated density should recover the signal variance of 0.5.
	if total < 0.35 || total > 0.65 {
		t.Errorf("integrated power = %g, want near 0.5", total)
	}

	peakBin := 20
	quietBin := 60 // 30Hz
	if spec.Power[peakBin] < 100*spec.Power[quietBin] {
		t.Errorf("peak power %g should dominate the quiet bin %g",
			spec.Power[peakBin], spec.Power[quietBin])
	}
}

func TestWelchPSDErrors(t *testing.T) {
	if _, err := WelchPSD(make([]float64, 4), 128, 2); err == nil {
		t.Error("expected an error for too few samples")
	}
	if _, err := WelchPSD(make([]float64, 256), 0, 2); err == nil {
		t.Error("expected an error for a zero rate")
	}
	if _, err := WelchPSD(make([]float64, 256), 128, 0); err == nil {
		t.Error("expected an error for a zero segment length")
	}
}

func TestSpectrumDB(t *testing.T) {
	spec := &Spectrum{Power: []float64{1, 0.1, 0}}

	db := spec.DB()
	if db[0] != 0 {
		t.Errorf("DB of 1 = %g, want 0", db[0])
	}
	if math.Abs(db[1]+10) > 1e-9 {
		t.Errorf("DB of 0.1 = %g, want -10", db[1])
	}
	if db[2] > -100 {
		t.Errorf("DB of 0 should floor far below the signal, got %g", db[2])
	}
}
