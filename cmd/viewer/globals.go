package main

import (
	"sync"

	"github.com/neuroviz/neuroviz/bids"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/runlog"
	"github.com/neuroviz/neuroviz/surface"
)

type Global struct {
	log logger

	Site string

	cfg      *config.Config
	layout   *bids.Layout
	exporter *export.Exporter
	ledger   *runlog.Ledger

	// One mutex serializes every handler. Each interaction re-renders
	// synchronously, so two requests never race on the loaded subject.
	mu sync.Mutex

	subject    string
	volumes    map[string]*loadedVolume
	mesh       *surface.Mesh
	electrodes []bids.Electrode
	display    displaySettings
}

// loadedVolume caches a parsed volume with its precomputed intensity window,
// so every slice of it shares one scaling.
type loadedVolume struct {
	vol *nifti.Volume
	max float64
}

// displaySettings survive across page loads so a refresh keeps the view.
type displaySettings struct {
	Modality       string
	Timepoint      int
	Opacity        int
	ShowElectrodes bool
	Azimuth        float64
	Elevation      float64
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
