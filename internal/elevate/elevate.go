// Package elevate detects and acquires the administrator rights nipe needs
// to change firewall rules and spawn the proxy under another account.
package elevate

import "fmt"

// Ensure returns nil when the process is already privileged. Otherwise it
// tries to relaunch nipe elevated; on success that call does not return.
func Ensure(action string) error {
	if IsAdmin() {
		return nil
	}
	if err := RunAsAdmin(); err != nil {
		return fmt.Errorf("nipe must run as %s to %s: %w", adminName, action, err)
	}
	return nil
}
