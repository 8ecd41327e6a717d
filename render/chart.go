package render

import (
	"bytes"
	"io"

	"github.com/wcharczuk/go-chart/v2"
)

// PlotTracePNG renders one signal trace as a PNG. When yMin == yMax the
// vertical range is fit to the data; otherwise it is fixed, which keeps a
// set of related plots comparable.
func PlotTracePNG(w io.Writer, title string, xValues, yValues []float64, width, height int, yMin, yMax float64) error {
	var chartRange *chart.ContinuousRange

	if yMin != yMax {
		chartRange = &chart.ContinuousRange{Min: yMin, Max: yMax}
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Style: chart.Hidden(),
		},
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
			Range: chartRange,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}

	_, err := buffer.WriteTo(w)

	return err
}

// PlotStackedTracesPNG renders several traces in one plot, each offset
// vertically so they do not overlap. Traces are assumed to share a sampling
// rate; the x axis is seconds.
func PlotStackedTracesPNG(w io.Writer, title string, names []string, traces [][]float64, sampleHz float64, width, height int) error {
	// Offset traces by the largest peak-to-peak swing among them.
	var spread float64
	for _, trace := range traces {
		if len(trace) == 0 {
			continue
		}
		min, max := trace[0], trace[0]
		for _, v := range trace {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if pp := max - min; pp > spread {
			spread = pp
		}
	}
	if spread == 0 {
		spread = 1
	}

	series := make([]chart.Series, 0, len(traces))
	for i, trace := range traces {
		xValues := make([]float64, len(trace))
		yValues := make([]float64, len(trace))
		offset := float64(len(traces)-1-i) * spread

		for j, v := range trace {
			xValues[j] = float64(j) / sampleHz
			yValues[j] = v + offset
		}

		name := ""
		if i < len(names) {
			name = names[i]
		}

		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xValues,
			YValues: yValues,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
		},
		Series: series,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}

	_, err := buffer.WriteTo(w)

	return err
}
