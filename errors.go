package neuroviz

import (
	"errors"
	"fmt"
)

// The pipeline distinguishes three failure kinds: bad settings, missing or
// corrupt subject data, and failures of wrapped external tools. Stage
// commands map these onto conventional exit codes so that shell drivers can
// tell them apart.

type ConfigError struct {
	err error
}

func ConfigErrorf(format string, args ...interface{}) error {
	return &ConfigError{err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string { return e.err.Error() }
func (e *ConfigError) Unwrap() error { return e.err }

type DataError struct {
	err error
}

func DataErrorf(format string, args ...interface{}) error {
	return &DataError{err: fmt.Errorf(format, args...)}
}

func (e *DataError) Error() string { return e.err.Error() }
func (e *DataError) Unwrap() error { return e.err }

// ToolError describes a non-zero exit (or a failure to launch) of an
// external program such as bet, fast, flirt, or ffmpeg. Stderr holds the
// tail of the tool's error stream when one was captured.
type ToolError struct {
	Tool   string
	Stderr string
	err    error
}

func NewToolError(tool string, err error, stderr string) error {
	return &ToolError{Tool: tool, Stderr: stderr, err: err}
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.err)
	}

	return fmt.Sprintf("%s: %v: %s", e.Tool, e.err, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.err }

const (
	ExitConfigError = 2
	ExitDataError   = 3
	ExitToolError   = 4
)

// ExitCode maps an error onto the stage exit code convention. Nil yields 0,
// unclassified errors yield 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var confErr *ConfigError
	if errors.As(err, &confErr) {
		return ExitConfigError
	}

	var dataErr *DataError
	if errors.As(err, &dataErr) {
		return ExitDataError
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return ExitToolError
	}

	return 1
}
