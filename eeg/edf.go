// Package eeg reads EDF recordings and prepares channels for reporting:
// band-pass filtering and Welch spectra for the eyes-open/eyes-closed task
// data that accompanies the imaging sessions.
package eeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/neuroviz/neuroviz"
)

// Channel is one signal of a recording with samples already converted to
// physical units.
type Channel struct {
	Label            string
	Transducer       string
	PhysicalDim      string
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	Prefiltering     string
	SamplesPerRecord int

	Samples []float64
}

// Recording is a parsed EDF file.
type Recording struct {
	PatientID      string
	RecordingID    string
	StartDate      string // dd.mm.yy
	StartTime      string // hh.mm.ss
	NumRecords     int
	RecordDuration float64 // seconds

	Channels []Channel
}

// SampleRate returns the sampling frequency of channel i in Hz.
func (r *Recording) SampleRate(i int) float64 {
	if r.RecordDuration <= 0 {
		return 0
	}

	return float64(r.Channels[i].SamplesPerRecord) / r.RecordDuration
}

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	return float64(r.NumRecords) * r.RecordDuration
}

func (r *Recording) Labels() []string {
	out := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		out[i] = ch.Label
	}

	return out
}

// Channel finds a channel by label.
func (r *Recording) Channel(label string) (*Channel, int, error) {
	for i := range r.Channels {
		if r.Channels[i].Label == label {
			return &r.Channels[i], i, nil
		}
	}

	return nil, -1, neuroviz.DataErrorf("eeg: recording has no channel %q (have %s)",
		label, strings.Join(r.Labels(), ", "))
}

// Select returns a copy limited to the named channels, in the given order.
// An empty list keeps everything.
func (r *Recording) Select(labels []string) (*Recording, error) {
	if len(labels) == 0 {
		return r, nil
	}

	out := *r
	out.Channels = make([]Channel, 0, len(labels))
	for _, label := range labels {
		ch, _, err := r.Channel(label)
		if err != nil {
			return nil, err
		}
		out.Channels = append(out.Channels, *ch)
	}

	return &out, nil
}

const edfMainHeaderSize = 256
const edfSignalHeaderSize = 256

type edfFields []byte

func (f edfFields) text(off, width int) string {
	return strings.TrimSpace(string(f[off : off+width]))
}

func (f edfFields) integer(off, width int) (int, error) {
	return strconv.Atoi(f.text(off, width))
}

func (f edfFields) float(off, width int) (float64, error) {
	return strconv.ParseFloat(f.text(off, width), 64)
}

// ReadEDF parses an EDF byte stream. Samples are scaled from their 16-bit
// digital range into physical units using the per-signal calibration.
func ReadEDF(r io.Reader) (*Recording, error) {
	main := make(edfFields, edfMainHeaderSize)
	if _, err := io.ReadFull(r, main); err != nil {
		return nil, neuroviz.DataErrorf("edf: header: %v", err)
	}

	rec := &Recording{
		PatientID:   main.text(8, 80),
		RecordingID: main.text(88, 80),
		StartDate:   main.text(168, 8),
		StartTime:   main.text(176, 8),
	}

	numRecords, err := main.integer(236, 8)
	if err != nil {
		return nil, neuroviz.DataErrorf("edf: bad record count: %v", err)
	}

	if rec.RecordDuration, err = main.float(244, 8); err != nil {
		return nil, neuroviz.DataErrorf("edf: bad record duration: %v", err)
	}

	ns, err := main.integer(252, 4)
	if err != nil || ns < 1 {
		return nil, neuroviz.DataErrorf("edf: bad signal count %q", main.text(252, 4))
	}

	sig := make(edfFields, ns*edfSignalHeaderSize)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, neuroviz.DataErrorf("edf: signal headers: %v", err)
	}

	rec.Channels = make([]Channel, ns)
	for i := range rec.Channels {
		ch := &rec.Channels[i]
		ch.Label = sig.text(i*16, 16)
		ch.Transducer = sig.text(16*ns+i*80, 80)
		ch.PhysicalDim = sig.text(96*ns+i*8, 8)
		ch.Prefiltering = sig.text(136*ns+i*80, 80)

		if ch.PhysicalMin, err = sig.float(104*ns+i*8, 8); err != nil {
			return nil, neuroviz.DataErrorf("edf: signal %d physical minimum: %v", i, err)
		}
		if ch.PhysicalMax, err = sig.float(112*ns+i*8, 8); err != nil {
			return nil, neuroviz.DataErrorf("edf: signal %d physical maximum: %v", i, err)
		}
		if ch.DigitalMin, err = sig.integer(120*ns+i*8, 8); err != nil {
			return nil, neuroviz.DataErrorf("edf: signal %d digital minimum: %v", i, err)
		}
		if ch.DigitalMax, err = sig.integer(128*ns+i*8, 8); err != nil {
			return nil, neuroviz.DataErrorf("edf: signal %d digital maximum: %v", i, err)
		}
		if ch.SamplesPerRecord, err = sig.integer(216*ns+i*8, 8); err != nil {
			return nil, neuroviz.DataErrorf("edf: signal %d samples per record: %v", i, err)
		}
		if ch.DigitalMax == ch.DigitalMin {
			return nil, neuroviz.DataErrorf("edf: signal %d has an empty digital range", i)
		}
		if ch.SamplesPerRecord < 1 {
			return nil, neuroviz.DataErrorf("edf: signal %d has %d samples per record", i, ch.SamplesPerRecord)
		}
	}

	recordSize := 0
	for i := range rec.Channels {
		recordSize += 2 * rec.Channels[i].SamplesPerRecord
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, neuroviz.DataErrorf("edf: records: %v", err)
	}

	// A record count of -1 means "unknown"; infer it from the payload.
	if numRecords < 0 {
		numRecords = len(payload) / recordSize
	}
	if len(payload) < numRecords*recordSize {
		return nil, neuroviz.DataErrorf("edf: truncated payload: %d bytes for %d records of %d bytes",
			len(payload), numRecords, recordSize)
	}
	rec.NumRecords = numRecords

	for i := range rec.Channels {
		ch := &rec.Channels[i]
		ch.Samples = make([]float64, 0, numRecords*ch.SamplesPerRecord)
	}

	off := 0
	for rcd := 0; rcd < numRecords; rcd++ {
		for i := range rec.Channels {
			ch := &rec.Channels[i]
			scale := (ch.PhysicalMax - ch.PhysicalMin) / float64(ch.DigitalMax-ch.DigitalMin)

			for s := 0; s < ch.SamplesPerRecord; s++ {
				dig := int16(binary.LittleEndian.Uint16(payload[off : off+2]))
				off += 2
				ch.Samples = append(ch.Samples, (float64(dig)-float64(ch.DigitalMin))*scale+ch.PhysicalMin)
			}
		}
	}

	return rec, nil
}

// LoadEDF reads a recording from disk.
func LoadEDF(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, neuroviz.DataErrorf("edf: %v", err)
	}
	defer f.Close()

	return ReadEDF(f)
}

func putField(dst []byte, off, width int, s string) {
	field := dst[off : off+width]
	for i := range field {
		field[i] = ' '
	}
	if len(s) > width {
		s = s[:width]
	}
	copy(field, s)
}

// formatEDFFloat renders v so it fits the 8 character EDF numeric field.
func formatEDFFloat(v float64) string {
	for prec := 8; prec >= 1; prec-- {
		s := strconv.FormatFloat(v, 'g', prec, 64)
		if len(s) <= 8 {
			return s
		}
	}

	return strconv.FormatFloat(v, 'g', 1, 64)
}

// WriteEDF serializes a recording. Channels must agree on duration: the
// sample count of every channel divided by its per-record count has to give
// the same number of records.
func WriteEDF(w io.Writer, rec *Recording) error {
	if len(rec.Channels) == 0 {
		return neuroviz.DataErrorf("edf: recording has no channels")
	}

	duration := rec.RecordDuration
	if duration <= 0 {
		duration = 1
	}

	numRecords := -1
	for i := range rec.Channels {
		ch := &rec.Channels[i]
		if ch.SamplesPerRecord < 1 {
			return neuroviz.DataErrorf("edf: channel %q has no samples per record", ch.Label)
		}
		if len(ch.Samples)%ch.SamplesPerRecord != 0 {
			return neuroviz.DataErrorf("edf: channel %q has %d samples, not a whole number of %d sample records",
				ch.Label, len(ch.Samples), ch.SamplesPerRecord)
		}

		n := len(ch.Samples) / ch.SamplesPerRecord
		if numRecords == -1 {
			numRecords = n
		} else if n != numRecords {
			return neuroviz.DataErrorf("edf: channel %q spans %d records, others span %d", ch.Label, n, numRecords)
		}
	}

	ns := len(rec.Channels)

	// Channels without an explicit calibration get one derived from their
	// sample range so the digital span is fully used.
	type calibration struct {
		physMin, physMax float64
		digMin, digMax   int
	}
	cals := make([]calibration, ns)
	for i := range rec.Channels {
		ch := &rec.Channels[i]

		c := calibration{ch.PhysicalMin, ch.PhysicalMax, ch.DigitalMin, ch.DigitalMax}
		if c.physMin == c.physMax {
			c.physMin, c.physMax = sampleRange(ch.Samples)
		}
		if c.digMin == c.digMax {
			c.digMin, c.digMax = -32768, 32767
		}
		cals[i] = c
	}

	main := make([]byte, edfMainHeaderSize)
	putField(main, 0, 8, "0")
	putField(main, 8, 80, rec.PatientID)
	putField(main, 88, 80, rec.RecordingID)
	putField(main, 168, 8, orDefault(rec.StartDate, "01.01.00"))
	putField(main, 176, 8, orDefault(rec.StartTime, "00.00.00"))
	putField(main, 184, 8, strconv.Itoa(edfMainHeaderSize+ns*edfSignalHeaderSize))
	putField(main, 236, 8, strconv.Itoa(numRecords))
	putField(main, 244, 8, formatEDFFloat(duration))
	putField(main, 252, 4, strconv.Itoa(ns))

	sig := make([]byte, ns*edfSignalHeaderSize)
	for i := range rec.Channels {
		ch := &rec.Channels[i]

		putField(sig, i*16, 16, ch.Label)
		putField(sig, 16*ns+i*80, 80, ch.Transducer)
		putField(sig, 96*ns+i*8, 8, ch.PhysicalDim)
		putField(sig, 104*ns+i*8, 8, formatEDFFloat(cals[i].physMin))
		putField(sig, 112*ns+i*8, 8, formatEDFFloat(cals[i].physMax))
		putField(sig, 120*ns+i*8, 8, strconv.Itoa(cals[i].digMin))
		putField(sig, 128*ns+i*8, 8, strconv.Itoa(cals[i].digMax))
		putField(sig, 136*ns+i*80, 80, ch.Prefiltering)
		putField(sig, 216*ns+i*8, 8, strconv.Itoa(ch.SamplesPerRecord))
	}

	var buf bytes.Buffer
	buf.Write(main)
	buf.Write(sig)

	for rcd := 0; rcd < numRecords; rcd++ {
		for i := range rec.Channels {
			ch := &rec.Channels[i]
			c := cals[i]
			scale := float64(c.digMax-c.digMin) / (c.physMax - c.physMin)

			for s := 0; s < ch.SamplesPerRecord; s++ {
				v := ch.Samples[rcd*ch.SamplesPerRecord+s]
				dig := int(math.Round((v-c.physMin)*scale)) + c.digMin
				if dig < c.digMin {
					dig = c.digMin
				}
				if dig > c.digMax {
					dig = c.digMax
				}

				var sample [2]byte
				binary.LittleEndian.PutUint16(sample[:], uint16(int16(dig)))
				buf.Write(sample[:])
			}
		}
	}

	_, err := w.Write(buf.Bytes())

	return pfx.Err(err)
}

// SaveEDF writes the recording to disk.
func SaveEDF(path string, rec *Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return neuroviz.DataErrorf("edf: %v", err)
	}

	if err := WriteEDF(f, rec); err != nil {
		f.Close()
		return err
	}

	return pfx.Err(f.Close())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}

// sampleRange gives a usable physical calibration when none was provided.
func sampleRange(samples []float64) (min, max float64) {
	if len(samples) == 0 {
		return 0, 1
	}

	min, max = samples[0], samples[0]
	for _, v := range samples[1:] {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if min == max {
		max = min + 1
	}

	return min, max
}

// Describe summarizes the recording for stage logs.
func (r *Recording) Describe() string {
	rates := make([]string, len(r.Channels))
	for i := range r.Channels {
		rates[i] = fmt.Sprintf("%s@%gHz", r.Channels[i].Label, r.SampleRate(i))
	}

	return fmt.Sprintf("%d channels, %.1fs: %s", len(r.Channels), r.Duration(), strings.Join(rates, " "))
}
