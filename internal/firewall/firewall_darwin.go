//go:build darwin

package firewall

import "github.com/user/nipe/internal/procutil"

// New returns the variant for this host (pf).
func New(runner procutil.Runner) Firewall {
	return NewPF(runner)
}
