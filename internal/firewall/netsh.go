package firewall

import (
	"context"
	"fmt"

	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/procutil"
)

const netshRuleName = "Nipe Kill Switch"

// Netsh implements the kill switch as one deny-all-outbound advfirewall
// rule and the proxy setting as the global WinHTTP proxy.
type Netsh struct {
	runner procutil.Runner
}

// NewNetsh creates the rule-engine variant.
func NewNetsh(runner procutil.Runner) *Netsh {
	return &Netsh{runner: runner}
}

// Name implements Firewall.
func (f *Netsh) Name() string { return "netsh" }

// EnableKillSwitch replaces any same-named rule with a block rule for all
// outbound traffic. Windows has no per-account match in advfirewall, so
// the owner and ports in rules are not used.
func (f *Netsh) EnableKillSwitch(ctx context.Context, rules *Rules) error {
	if err := rules.validate(); err != nil {
		return err
	}

	logger.Info("Enabling netsh kill switch")

	// Ignore the error: the rule is usually absent.
	f.runner.Run(ctx, "netsh", "advfirewall", "firewall", "delete", "rule", "name="+netshRuleName)

	_, err := run(ctx, f.runner, "enable kill switch", "netsh", "advfirewall", "firewall", "add", "rule",
		"name="+netshRuleName, "dir=out", "action=block", "enable=yes", "profile=any")
	return err
}

// DisableKillSwitch deletes the rule if it exists.
func (f *Netsh) DisableKillSwitch(ctx context.Context) error {
	if _, err := f.runner.Run(ctx, "netsh", "advfirewall", "firewall", "show", "rule", "name="+netshRuleName); err != nil {
		// "No rules match the specified criteria."
		return nil
	}

	logger.Info("Disabling netsh kill switch")
	_, err := run(ctx, f.runner, "disable kill switch", "netsh", "advfirewall", "firewall", "delete", "rule", "name="+netshRuleName)
	return err
}

// EnableProxy sets the WinHTTP proxy to the local listener.
func (f *Netsh) EnableProxy(ctx context.Context, port int) error {
	logger.Info("Setting WinHTTP proxy to 127.0.0.1:%d", port)
	_, err := run(ctx, f.runner, "enable proxy", "netsh", "winhttp", "set", "proxy", fmt.Sprintf("127.0.0.1:%d", port))
	return err
}

// DisableProxy resets WinHTTP to direct access.
func (f *Netsh) DisableProxy(ctx context.Context) error {
	_, err := run(ctx, f.runner, "disable proxy", "netsh", "winhttp", "reset", "proxy")
	return err
}
