//go:build !windows

package elevate

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

const adminName = "root"

// IsAdmin returns true if the current process is running as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// RunAsAdmin re-executes nipe under sudo so the terminal stays attached.
// Without sudo it falls back to the platform's graphical prompt.
func RunAsAdmin() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	args := append([]string{exe}, os.Args[1:]...)

	if sudoPath, err := exec.LookPath("sudo"); err == nil {
		return syscall.Exec(sudoPath, append([]string{"sudo"}, args...), os.Environ())
	}
	return runGraphical(exe, args)
}

// runAndExit runs cmd with our stdio and exits with its status.
func runAndExit(cmd *exec.Cmd) error {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	os.Exit(0)
	return nil
}
