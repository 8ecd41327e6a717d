package fsl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neuroviz/neuroviz"
)

func TestCommandConstruction(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			"bet",
			BET("t1.nii.gz", "t1_brain.nii.gz", 0.5),
			"bet t1.nii.gz t1_brain.nii.gz -f 0.5",
		},
		{
			"fast",
			FAST("t1_brain.nii.gz", "seg", 3),
			"fast -n 3 -o seg t1_brain.nii.gz",
		},
		{
			"flirt",
			FLIRT("in.nii.gz", "ref.nii.gz", "out.nii.gz", "xfm.mat", 12),
			"flirt -in in.nii.gz -ref ref.nii.gz -out out.nii.gz -omat xfm.mat -dof 12",
		},
		{
			"fnirt",
			FNIRT("in.nii.gz", "ref.nii.gz", "out.nii.gz"),
			"fnirt --in=in.nii.gz --ref=ref.nii.gz --iout=out.nii.gz",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cmd.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAlignmentModes(t *testing.T) {
	cases := []struct {
		mode     string
		wantTool string
		wantDof  string
	}{
		{"rigid", "flirt", "6"},
		{"affine", "flirt", "12"},
		{"nonlinear", "fnirt", ""},
	}

	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			cmd, err := Alignment(tc.mode, "in", "ref", "out", "omat")
			if err != nil {
				t.Fatalf("Alignment(%s) error: %v", tc.mode, err)
			}
			if cmd.Name != tc.wantTool {
				t.Errorf("tool = %q, want %q", cmd.Name, tc.wantTool)
			}
			if tc.wantDof != "" && !strings.Contains(cmd.String(), "-dof "+tc.wantDof) {
				t.Errorf("%q should carry -dof %s", cmd.String(), tc.wantDof)
			}
		})
	}

	_, err := Alignment("warp", "in", "ref", "out", "omat")
	if err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
	var confErr *neuroviz.ConfigError
	if !errors.As(err, &confErr) {
		t.Errorf("error should classify as a config error, got %T", err)
	}
}

// fakeTool drops an executable script on PATH so Run and Verify can be
// exercised without FSL present.
func fakeTool(t *testing.T, name, script string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunSuccess(t *testing.T) {
	fakeTool(t, "stubtool", "exit 0")

	if err := Run(context.Background(), Command{Name: "stubtool", Args: []string{"-x"}}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunFailureCarriesStderr(t *testing.T) {
	fakeTool(t, "stubtool", `echo "input image not found" >&2; exit 3`)

	err := Run(context.Background(), Command{Name: "stubtool"})
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}

	var toolErr *neuroviz.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error should classify as a tool error, got %T", err)
	}
	if toolErr.Tool != "stubtool" {
		t.Errorf("Tool = %q, want stubtool", toolErr.Tool)
	}
	if !strings.Contains(toolErr.Stderr, "input image not found") {
		t.Errorf("Stderr = %q, want the tool's message", toolErr.Stderr)
	}
	if neuroviz.ExitCode(err) != neuroviz.ExitToolError {
		t.Errorf("ExitCode = %d, want %d", neuroviz.ExitCode(err), neuroviz.ExitToolError)
	}
}

func TestVerifyMissingBinary(t *testing.T) {
	err := Verify(context.Background(), "definitely-not-a-real-fsl-tool")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}

	var toolErr *neuroviz.ToolError
	if !errors.As(err, &toolErr) {
		t.Errorf("error should classify as a tool error, got %T", err)
	}
}

func TestVerifyFindsFakeTool(t *testing.T) {
	fakeTool(t, "bet", "exit 1") // usage exit, which Verify tolerates

	if err := Verify(context.Background(), "bet"); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
}
