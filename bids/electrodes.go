package bids

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/neuroviz/neuroviz"
)

// Electrode is one row of a BIDS electrodes table: a named contact position
// in the surface coordinate frame. Displayed as a marker by the viewer;
// never used for computation.
type Electrode struct {
	Name string  `csv:"name"`
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
}

// LoadElectrodes reads an electrode coordinate table. BIDS prescribes
// tab-separated values, but comma-separated tables exist in the wild, so the
// delimiter is sniffed from the content.
func LoadElectrodes(path string) ([]Electrode, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, neuroviz.DataErrorf("electrodes: %v", err)
	}

	delim := neuroviz.DetermineDelimiter(bytes.NewReader(fileBytes))

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = delim
		r.LazyQuotes = true
		return r
	})

	records := []*Electrode{}
	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, neuroviz.DataErrorf("electrodes %s: %v", path, err)
	}

	out := make([]Electrode, 0, len(records))
	for _, record := range records {
		out = append(out, *record)
	}

	return out, nil
}
