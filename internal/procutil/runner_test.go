//go:build !windows

package procutil

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunnerCapturesStdout(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "printf hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("stdout = %q, want %q", out, "hello")
	}
}

func TestExecRunnerReportsStderr(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo 'no such chain' >&2; exit 3")
	if err == nil {
		t.Fatal("expected an error for a failing command")
	}

	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if cerr.Stderr != "no such chain" {
		t.Errorf("Stderr = %q", cerr.Stderr)
	}
	if !strings.HasPrefix(cerr.Error(), "sh -c ") {
		t.Errorf("Error() = %q, want command line prefix", cerr.Error())
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "nipe-definitely-not-a-command")
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
}
