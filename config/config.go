// Package config loads the project settings document that every pipeline
// stage consumes. Settings are YAML, parsed strictly: unknown keys and type
// mismatches are configuration errors, not silent defaults. A parsed Config
// is never mutated after Load returns.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"

	"github.com/neuroviz/neuroviz"
)

type Config struct {
	ProjectName     string   `yaml:"project_name"`
	OutputDirectory string   `yaml:"output_directory"`
	LogLevel        string   `yaml:"log_level"`
	DataPath        string   `yaml:"data_path"`
	DerivativesPath string   `yaml:"derivatives_path"`
	Subjects        []string `yaml:"subjects"`
	Session         string   `yaml:"session"`
	UsePreprocessed bool     `yaml:"use_preprocessed"`

	EEG           EEGConfig           `yaml:"eeg"`
	MRI           MRIConfig           `yaml:"mri"`
	Visualization VisualizationConfig `yaml:"visualization"`
	GUI           GUIConfig           `yaml:"gui"`
	Export        ExportConfig        `yaml:"export"`
}

type EEGConfig struct {
	// SamplingRate is a fallback in Hz for recordings whose header lacks one.
	SamplingRate float64 `yaml:"sampling_rate"`

	HighpassHz float64 `yaml:"highpass_hz"`
	LowpassHz  float64 `yaml:"lowpass_hz"`

	// Channels selects a subset by label; empty means all channels.
	Channels []string `yaml:"channels"`

	// PSDSegmentSec is the Welch segment length in seconds.
	PSDSegmentSec float64 `yaml:"psd_segment_sec"`
}

type MRIConfig struct {
	T1Acquisition string `yaml:"t1_acquisition"`
	FMRITask      string `yaml:"fmri_task"`

	BiasShrink           int     `yaml:"bias_shrink"`
	CLAHEClip            float64 `yaml:"clahe_clip"`
	BilateralDomainSigma float64 `yaml:"bilateral_domain_sigma"`
	BilateralRangeSigma  float64 `yaml:"bilateral_range_sigma"`

	BETFractionalIntensity float64 `yaml:"bet_fractional_intensity"`
	FASTClasses            int     `yaml:"fast_classes"`

	// AlignmentMode selects the registration: rigid, affine, or nonlinear.
	AlignmentMode string `yaml:"alignment_mode"`
	// AlignmentReference is the volume the T1 is registered against. Empty
	// targets the subject's own raw acquisition, keeping native space.
	AlignmentReference string `yaml:"alignment_reference"`

	ThresholdLow            float64 `yaml:"threshold_low"`
	ThresholdHigh           float64 `yaml:"threshold_high"`
	SurfaceIsovalueFraction float64 `yaml:"surface_isovalue_fraction"`

	LaplacianIterations int     `yaml:"laplacian_iterations"`
	LaplacianRelaxation float64 `yaml:"laplacian_relaxation"`
	TaubinIterations    int     `yaml:"taubin_iterations"`
	TaubinPassband      float64 `yaml:"taubin_passband"`
	FillHoleSize        float64 `yaml:"fill_hole_size"`

	// FMRIMapping selects how vertex values are sampled: nearest or trilinear.
	FMRIMapping string `yaml:"fmri_mapping"`

	// FMRIStatistic selects the per-voxel reduction: timepoint or mean.
	FMRIStatistic string `yaml:"fmri_statistic"`
	FMRITimepoint int    `yaml:"fmri_timepoint"`

	ScalarSmoothIterations int     `yaml:"scalar_smooth_iterations"`
	ScalarSmoothPassband   float64 `yaml:"scalar_smooth_passband"`
}

type VisualizationConfig struct {
	ColormapT1       string  `yaml:"colormap_t1"`
	ColormapFMRI     string  `yaml:"colormap_fmri"`
	ScalarSaturation float64 `yaml:"scalar_saturation"`
	SlicePlanes      int     `yaml:"slice_planes"`
	ShowElectrodes   bool    `yaml:"show_electrodes"`
}

type GUIConfig struct {
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	Listen       string `yaml:"listen"`

	// SurfaceOpacity is the slider default, 0 (transparent) to 100 (opaque).
	SurfaceOpacity int `yaml:"surface_opacity"`

	Background [3]float64 `yaml:"background"`
}

type ExportConfig struct {
	FigureFormat string `yaml:"figure_format"`
	FigureDPI    int    `yaml:"figure_dpi"`
	DataFormat   string `yaml:"data_format"`
	SaveFigures  bool   `yaml:"save_figures"`
}

// DefaultConfig returns the settings used when a key is absent from the
// document.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.LogLevel = "info"
	cfg.Session = "ses-001"

	cfg.EEG.SamplingRate = 256.0
	cfg.EEG.HighpassHz = 0.5
	cfg.EEG.LowpassHz = 40.0
	cfg.EEG.PSDSegmentSec = 4.0

	cfg.MRI.T1Acquisition = "highres"
	cfg.MRI.FMRITask = "eoec"
	cfg.MRI.BiasShrink = 4
	cfg.MRI.CLAHEClip = 0.03
	cfg.MRI.BilateralDomainSigma = 0.1
	cfg.MRI.BilateralRangeSigma = 20.0
	cfg.MRI.BETFractionalIntensity = 0.5
	cfg.MRI.FASTClasses = 3
	cfg.MRI.AlignmentMode = "affine"
	cfg.MRI.ThresholdLow = 30.0
	cfg.MRI.ThresholdHigh = 60.0
	cfg.MRI.SurfaceIsovalueFraction = 0.6
	cfg.MRI.LaplacianIterations = 100
	cfg.MRI.LaplacianRelaxation = 0.1
	cfg.MRI.TaubinIterations = 600
	cfg.MRI.TaubinPassband = 0.2
	cfg.MRI.FillHoleSize = 50.0
	cfg.MRI.FMRIMapping = "nearest"
	cfg.MRI.FMRIStatistic = "timepoint"
	cfg.MRI.ScalarSmoothIterations = 100
	cfg.MRI.ScalarSmoothPassband = 0.08

	cfg.Visualization.ColormapT1 = "gray"
	cfg.Visualization.ColormapFMRI = "hot"
	cfg.Visualization.ScalarSaturation = 0.9
	cfg.Visualization.SlicePlanes = 3
	cfg.Visualization.ShowElectrodes = true

	cfg.GUI.WindowWidth = 1200
	cfg.GUI.WindowHeight = 800
	cfg.GUI.Listen = "127.0.0.1:8089"
	cfg.GUI.SurfaceOpacity = 50
	cfg.GUI.Background = [3]float64{0.1, 0.1, 0.1}

	cfg.Export.FigureFormat = "png"
	cfg.Export.FigureDPI = 150
	cfg.Export.DataFormat = "csv"
	cfg.Export.SaveFigures = true

	return cfg
}

// Load parses and validates the settings document at path. Parsing the same
// document twice yields identical configurations.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, neuroviz.ConfigErrorf("config: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, neuroviz.ConfigErrorf("config %s: %v", path, err)
	}

	return cfg, nil
}

// Parse decodes a settings document, applies defaults for absent keys, and
// validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return nil, neuroviz.ConfigErrorf("%v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pfx.Err(err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.WriteFile(path, data, 0644))
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}

	return false
}

// Validate confirms required keys and enumerated values. Every failure is a
// configuration error.
func (c *Config) Validate() error {
	switch {
	case c.ProjectName == "":
		return neuroviz.ConfigErrorf("project_name is required")
	case c.DataPath == "":
		return neuroviz.ConfigErrorf("data_path is required")
	case c.DerivativesPath == "":
		return neuroviz.ConfigErrorf("derivatives_path is required")
	case c.OutputDirectory == "":
		return neuroviz.ConfigErrorf("output_directory is required")
	case len(c.Subjects) == 0:
		return neuroviz.ConfigErrorf("subjects must list at least one subject")
	}

	if !oneOf(c.LogLevel, "debug", "info", "warn", "error") {
		return neuroviz.ConfigErrorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	if c.EEG.HighpassHz <= 0 || c.EEG.LowpassHz <= c.EEG.HighpassHz {
		return neuroviz.ConfigErrorf("eeg band [%g, %g] Hz is not an increasing positive range", c.EEG.HighpassHz, c.EEG.LowpassHz)
	}
	if c.EEG.SamplingRate > 0 && c.EEG.LowpassHz >= c.EEG.SamplingRate/2 {
		return neuroviz.ConfigErrorf("eeg lowpass %g Hz is at or above the Nyquist rate for %g Hz sampling", c.EEG.LowpassHz, c.EEG.SamplingRate)
	}
	if c.EEG.PSDSegmentSec <= 0 {
		return neuroviz.ConfigErrorf("eeg psd_segment_sec must be positive")
	}

	if !oneOf(c.MRI.AlignmentMode, "rigid", "affine", "nonlinear") {
		return neuroviz.ConfigErrorf("alignment_mode %q is not one of rigid, affine, nonlinear", c.MRI.AlignmentMode)
	}
	if c.MRI.BETFractionalIntensity < 0 || c.MRI.BETFractionalIntensity > 1 {
		return neuroviz.ConfigErrorf("bet_fractional_intensity %g is outside [0, 1]", c.MRI.BETFractionalIntensity)
	}
	if c.MRI.FASTClasses < 2 || c.MRI.FASTClasses > 4 {
		return neuroviz.ConfigErrorf("fast_classes must be 2, 3, or 4")
	}
	if c.MRI.ThresholdHigh <= c.MRI.ThresholdLow {
		return neuroviz.ConfigErrorf("threshold window [%g, %g] is not increasing", c.MRI.ThresholdLow, c.MRI.ThresholdHigh)
	}
	if c.MRI.SurfaceIsovalueFraction <= 0 || c.MRI.SurfaceIsovalueFraction >= 1 {
		return neuroviz.ConfigErrorf("surface_isovalue_fraction %g is outside (0, 1)", c.MRI.SurfaceIsovalueFraction)
	}
	if !oneOf(c.MRI.FMRIMapping, "nearest", "trilinear") {
		return neuroviz.ConfigErrorf("fmri_mapping %q is not one of nearest, trilinear", c.MRI.FMRIMapping)
	}
	if !oneOf(c.MRI.FMRIStatistic, "timepoint", "mean") {
		return neuroviz.ConfigErrorf("fmri_statistic %q is not one of timepoint, mean", c.MRI.FMRIStatistic)
	}
	if c.MRI.FMRITimepoint < 0 {
		return neuroviz.ConfigErrorf("fmri_timepoint must not be negative")
	}
	if c.MRI.BiasShrink < 1 {
		return neuroviz.ConfigErrorf("bias_shrink must be at least 1")
	}

	if !oneOf(c.Visualization.ColormapT1, "gray", "hot", "jet") {
		return neuroviz.ConfigErrorf("colormap_t1 %q is not one of gray, hot, jet", c.Visualization.ColormapT1)
	}
	if !oneOf(c.Visualization.ColormapFMRI, "gray", "hot", "jet") {
		return neuroviz.ConfigErrorf("colormap_fmri %q is not one of gray, hot, jet", c.Visualization.ColormapFMRI)
	}
	if c.Visualization.ScalarSaturation <= 0 || c.Visualization.ScalarSaturation > 1 {
		return neuroviz.ConfigErrorf("scalar_saturation %g is outside (0, 1]", c.Visualization.ScalarSaturation)
	}

	if c.GUI.SurfaceOpacity < 0 || c.GUI.SurfaceOpacity > 100 {
		return neuroviz.ConfigErrorf("surface_opacity %d is outside 0..100", c.GUI.SurfaceOpacity)
	}
	if c.GUI.WindowWidth < 1 || c.GUI.WindowHeight < 1 {
		return neuroviz.ConfigErrorf("gui window %dx%d is not a positive size", c.GUI.WindowWidth, c.GUI.WindowHeight)
	}

	if !oneOf(c.Export.FigureFormat, "png", "svg", "pdf") {
		return neuroviz.ConfigErrorf("figure_format %q is not one of png, svg, pdf", c.Export.FigureFormat)
	}
	if !oneOf(c.Export.DataFormat, "csv", "json") {
		return neuroviz.ConfigErrorf("data_format %q is not one of csv, json", c.Export.DataFormat)
	}
	if c.Export.FigureDPI < 1 {
		return neuroviz.ConfigErrorf("figure_dpi must be positive")
	}

	return nil
}

// RawRoot returns data_path with any home shorthand expanded.
func (c *Config) RawRoot() (string, error) {
	return neuroviz.ExpandHome(c.DataPath)
}

// DerivRoot returns derivatives_path with any home shorthand expanded.
func (c *Config) DerivRoot() (string, error) {
	return neuroviz.ExpandHome(c.DerivativesPath)
}

// OutputRoot returns output_directory with any home shorthand expanded.
func (c *Config) OutputRoot() (string, error) {
	return neuroviz.ExpandHome(c.OutputDirectory)
}

// Verbose reports whether debug-level progress lines should be printed.
func (c *Config) Verbose() bool {
	return c.LogLevel == "debug"
}

// Describe returns a one-line summary suitable for a stage banner.
func (c *Config) Describe() string {
	return fmt.Sprintf("%s: %d subject(s), raw=%s derivatives=%s preprocessed=%t",
		c.ProjectName, len(c.Subjects), c.DataPath, c.DerivativesPath, c.UsePreprocessed)
}
