// Package fsl wraps the external FSL command line tools used for
// skull-stripping, tissue segmentation, and registration. The pipeline only
// builds argument lists and runs the binaries; all numerical work happens
// inside FSL itself.
package fsl

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/neuroviz/neuroviz"
)

// Command is a fully argued tool invocation, kept inspectable so stages can
// log the exact line they are about to run.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// BET builds the brain extraction call: bet <in> <out> -f <frac>.
func BET(in, out string, frac float64) Command {
	return Command{
		Name: "bet",
		Args: []string{in, out, "-f", strconv.FormatFloat(frac, 'g', -1, 64)},
	}
}

// FAST builds the tissue segmentation call on a skull-stripped input.
func FAST(in, outBase string, classes int) Command {
	return Command{
		Name: "fast",
		Args: []string{"-n", strconv.Itoa(classes), "-o", outBase, in},
	}
}

// FLIRT builds the linear registration call with the given degrees of
// freedom: 6 for rigid, 12 for affine.
func FLIRT(in, ref, out, omat string, dof int) Command {
	return Command{
		Name: "flirt",
		Args: []string{"-in", in, "-ref", ref, "-out", out, "-omat", omat, "-dof", strconv.Itoa(dof)},
	}
}

// FNIRT builds the nonlinear registration call.
func FNIRT(in, ref, out string) Command {
	return Command{
		Name: "fnirt",
		Args: []string{"--in=" + in, "--ref=" + ref, "--iout=" + out},
	}
}

// Alignment maps the configured mode onto a registration command.
func Alignment(mode, in, ref, out, omat string) (Command, error) {
	switch mode {
	case "rigid":
		return FLIRT(in, ref, out, omat, 6), nil
	case "affine":
		return FLIRT(in, ref, out, omat, 12), nil
	case "nonlinear":
		return FNIRT(in, ref, out), nil
	}

	return Command{}, neuroviz.ConfigErrorf("fsl: unknown alignment mode %q", mode)
}

// stderrTail keeps the end of a tool's error stream, which is where FSL
// puts the useful line.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}

	return s
}

// Run executes the command, blocking until it finishes. A non-zero exit or
// a failure to launch comes back as a ToolError carrying the stderr tail.
func Run(ctx context.Context, cmd Command) error {
	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	var stderr bytes.Buffer
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		return neuroviz.NewToolError(cmd.Name, err, stderrTail(stderr.String()))
	}

	return nil
}

// Verify checks that each named binary is on PATH and launches. The probe
// runs the tool with no arguments under a short timeout and ignores its
// exit status; FSL tools print usage and exit non-zero when unargued.
func Verify(ctx context.Context, names ...string) error {
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err != nil {
			return neuroviz.NewToolError(name, err, "is FSL installed and on PATH?")
		}

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		probe := exec.CommandContext(probeCtx, path)
		_ = probe.Run()
		cancel()

		if probeCtx.Err() == context.DeadlineExceeded {
			return neuroviz.NewToolError(name, probeCtx.Err(), "tool did not respond to a probe")
		}
	}

	return nil
}
