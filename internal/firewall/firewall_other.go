//go:build !darwin && !windows

package firewall

import "github.com/user/nipe/internal/procutil"

// New returns the variant for this host (iptables).
func New(runner procutil.Runner) Firewall {
	return NewIptables(runner)
}
