package config

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/neuroviz/neuroviz"
)

const minimalDoc = `project_name: demo
data_path: /data/raw
derivatives_path: /data/derivatives
output_directory: /data/out
subjects: [sub-001]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ProjectName != "demo" {
		t.Errorf("project_name: got %q", cfg.ProjectName)
	}
	if cfg.Session != "ses-001" {
		t.Errorf("session default: got %q", cfg.Session)
	}
	if cfg.MRI.AlignmentMode != "affine" {
		t.Errorf("alignment_mode default: got %q", cfg.MRI.AlignmentMode)
	}
	if cfg.MRI.FMRIMapping != "nearest" {
		t.Errorf("fmri_mapping default: got %q", cfg.MRI.FMRIMapping)
	}
	if cfg.MRI.SurfaceIsovalueFraction != 0.6 {
		t.Errorf("surface_isovalue_fraction default: got %g", cfg.MRI.SurfaceIsovalueFraction)
	}
	if cfg.GUI.SurfaceOpacity != 50 {
		t.Errorf("surface_opacity default: got %d", cfg.GUI.SurfaceOpacity)
	}
	if cfg.GUI.Background != [3]float64{0.1, 0.1, 0.1} {
		t.Errorf("background default: got %v", cfg.GUI.Background)
	}
	if cfg.Export.FigureFormat != "png" || cfg.Export.DataFormat != "csv" {
		t.Errorf("export defaults: got %q, %q", cfg.Export.FigureFormat, cfg.Export.DataFormat)
	}
}

// Parsing the same document twice must yield identical configurations.
func TestParseIsIdempotent(t *testing.T) {
	doc := minimalDoc + `
mri:
  alignment_mode: rigid
  fmri_statistic: mean
eeg:
  highpass_hz: 1.0
  lowpass_hz: 30.0
`

	first, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	second, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("parses differ:\n%+v\n%+v", first, second)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	doc := minimalDoc + "not_a_real_key: 12\n"

	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected an error for an unknown key")
	}

	var cfgErr *neuroviz.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing project name",
			mutate:  func(c *Config) { c.ProjectName = "" },
			wantErr: "project_name",
		},
		{
			name:    "no subjects",
			mutate:  func(c *Config) { c.Subjects = nil },
			wantErr: "subjects",
		},
		{
			name:    "bad alignment mode",
			mutate:  func(c *Config) { c.MRI.AlignmentMode = "elastic" },
			wantErr: "alignment_mode",
		},
		{
			name:    "bad mapping",
			mutate:  func(c *Config) { c.MRI.FMRIMapping = "cubic" },
			wantErr: "fmri_mapping",
		},
		{
			name:    "inverted thresholds",
			mutate:  func(c *Config) { c.MRI.ThresholdLow, c.MRI.ThresholdHigh = 60, 30 },
			wantErr: "threshold",
		},
		{
			name:    "inverted eeg band",
			mutate:  func(c *Config) { c.EEG.HighpassHz, c.EEG.LowpassHz = 40, 0.5 },
			wantErr: "eeg band",
		},
		{
			name:    "lowpass above nyquist",
			mutate:  func(c *Config) { c.EEG.LowpassHz = 200 },
			wantErr: "nyquist",
		},
		{
			name:    "opacity out of range",
			mutate:  func(c *Config) { c.GUI.SurfaceOpacity = 101 },
			wantErr: "surface_opacity",
		},
		{
			name:    "bad figure format",
			mutate:  func(c *Config) { c.Export.FigureFormat = "tiff" },
			wantErr: "figure_format",
		},
		{
			name:    "isovalue fraction at bound",
			mutate:  func(c *Config) { c.MRI.SurfaceIsovalueFraction = 1.0 },
			wantErr: "surface_isovalue_fraction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalDoc))
			if err != nil {
				t.Fatal(err)
			}

			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
			if got := neuroviz.ExitCode(err); got != neuroviz.ExitConfigError {
				t.Errorf("exit code: got %d, want %d", got, neuroviz.ExitConfigError)
			}
		})
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := neuroviz.ExitCode(err); got != neuroviz.ExitConfigError {
		t.Errorf("exit code: got %d, want %d", got, neuroviz.ExitConfigError)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(minimalDoc))
	if err != nil {
		t.Fatal(err)
	}
	cfg.MRI.AlignmentMode = "nonlinear"
	cfg.EEG.Channels = []string{"Cz", "Pz"}

	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("round trip changed the configuration:\n%+v\n%+v", cfg, loaded)
	}
}
