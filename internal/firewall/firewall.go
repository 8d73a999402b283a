// Package firewall implements the network kill switch and the host-level
// proxy setting that keep traffic inside the supervised proxy.
//
// Three variants exist: Iptables (Linux), PF (macOS) and Netsh (Windows).
// New picks the one for the running host; the choice never changes
// afterwards.
package firewall

import (
	"context"
	"fmt"

	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/procutil"
)

// Firewall is the capability set every platform variant provides. Each
// operation is safe to call when the opposite state already holds.
type Firewall interface {
	// Name identifies the variant in logs.
	Name() string
	// EnableKillSwitch installs rules so only the proxy's own traffic
	// (or already-established sessions) leaves the host.
	EnableKillSwitch(ctx context.Context, rules *Rules) error
	// DisableKillSwitch removes everything EnableKillSwitch installed.
	// It succeeds when nothing is installed.
	DisableKillSwitch(ctx context.Context) error
	// EnableProxy points the host's proxy setting at 127.0.0.1:port.
	// Variants without such a setting treat this as a no-op.
	EnableProxy(ctx context.Context, port int) error
	// DisableProxy clears the host proxy setting.
	DisableProxy(ctx context.Context) error
}

// Rules describes the supervised process to the kill switch.
type Rules struct {
	Owner     string // account name or numeric uid the proxy runs as
	DNSPort   int
	TransPort int
	AllowLAN  bool
	BlockIPv6 bool
}

func (r *Rules) validate() error {
	if r == nil {
		return fault.Config("kill switch rules", fmt.Errorf("rules are required"))
	}
	if r.Owner == "" {
		return fault.Config("kill switch rules", fmt.Errorf("proxy owner is required"))
	}
	if r.DNSPort <= 0 || r.TransPort <= 0 {
		return fault.Config("kill switch rules", fmt.Errorf("dns and transparent ports are required"))
	}
	return nil
}

var lanRanges = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "169.254.0.0/16"}

// run executes one tool invocation and classifies a failure as a firewall
// error for op. The command's stderr is carried in the cause.
func run(ctx context.Context, r procutil.Runner, op, name string, args ...string) ([]byte, error) {
	out, err := r.Run(ctx, name, args...)
	if err != nil {
		return out, fault.Firewall(op, err)
	}
	return out, nil
}
