//go:build windows

package firewall

import "github.com/user/nipe/internal/procutil"

// New returns the variant for this host (netsh).
func New(runner procutil.Runner) Firewall {
	return NewNetsh(runner)
}
