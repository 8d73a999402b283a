//go:build !windows

package procutil

import "os/exec"

// HideWindow returns cmd unchanged. Only Windows consoles need hiding.
func HideWindow(cmd *exec.Cmd) *exec.Cmd {
	return cmd
}
