//go:build !windows && !darwin

package elevate

import (
	"fmt"
	"os/exec"
)

// runGraphical uses pkexec, the polkit prompt.
func runGraphical(exe string, args []string) error {
	path, err := exec.LookPath("pkexec")
	if err != nil {
		return fmt.Errorf("neither sudo nor pkexec found")
	}
	return runAndExit(exec.Command(path, args...))
}
