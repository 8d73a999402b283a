// Package procutil runs the external packet-filter and network tools the
// firewall variants drive.
package procutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/user/nipe/internal/logger"
)

// Runner executes an external command and returns its standard output.
// A non-zero exit status is reported as a *CommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError describes a command that could not be started or exited
// with a failure status. Stderr holds the tool's diagnostic output.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.CommandLine(), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine returns the command and its arguments joined by spaces.
func (e *CommandError) CommandLine() string {
	return CommandLine(e.Name, e.Args...)
}

// CommandLine joins a command and its arguments for logs and errors.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts the command, waits for it and captures stdout and stderr
// separately.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := HideWindow(exec.CommandContext(ctx, name, args...))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("exec: %s", CommandLine(name, args...))
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &CommandError{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}
