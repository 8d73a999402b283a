//go:build darwin

package elevate

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// runGraphical uses osascript to show the native authorization dialog.
func runGraphical(exe string, args []string) error {
	osascriptPath, err := exec.LookPath("osascript")
	if err != nil {
		return fmt.Errorf("neither sudo nor osascript found")
	}

	// Resolve symlinks so osascript gets the real path
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		args[0] = resolved
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = quoted(a)
	}
	script := fmt.Sprintf(`do shell script "%s" with administrator privileges`, escapeAppleScript(strings.Join(parts, " ")))
	return runAndExit(exec.Command(osascriptPath, "-e", script))
}

// quoted wraps a string in single quotes for shell usage.
func quoted(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// escapeAppleScript escapes a string for use inside an AppleScript double-quoted string.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
