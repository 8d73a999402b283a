package firewall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/procutil"
)

const (
	pfRulesFile  = "/tmp/nipe_pf.conf"
	pfStateFile  = "/tmp/nipe_pf.state"
	pfSystemConf = "/etc/pf.conf"

	// pfEnabledByUs marks that pf was off before the kill switch turned it on.
	pfEnabledByUs = "enabled-by-nipe"

	defaultNetworkService = "Wi-Fi"
)

// PF implements the kill switch with the BSD packet filter and the proxy
// setting with networksetup's SOCKS firewall proxy. Rules are scoped to
// the default-route interface; IPv6 is always blocked.
type PF struct {
	runner procutil.Runner

	RulesPath  string
	StatePath  string
	SystemConf string

	mu      sync.Mutex
	iface   string
	service string
}

// NewPF creates the BSD-packet-filter variant.
func NewPF(runner procutil.Runner) *PF {
	return &PF{
		runner:     runner,
		RulesPath:  pfRulesFile,
		StatePath:  pfStateFile,
		SystemConf: pfSystemConf,
	}
}

// Name implements Firewall.
func (f *PF) Name() string { return "pf" }

// EnableKillSwitch loads the nipe ruleset and enables pf if it was off.
func (f *PF) EnableKillSwitch(ctx context.Context, rules *Rules) error {
	const op = "enable kill switch"
	if err := rules.validate(); err != nil {
		return err
	}

	iface, err := f.interfaceName(ctx)
	if err != nil {
		return err
	}

	logger.Info("Enabling pf kill switch on %s", iface)

	if err := f.DisableKillSwitch(ctx); err != nil {
		return err
	}

	if err := os.WriteFile(f.RulesPath, []byte(renderPFRules(iface, rules)), 0600); err != nil {
		return fault.IO(f.RulesPath, err)
	}

	// pf may already be on for unrelated rules; only turn it off later if
	// we are the ones turning it on.
	info, err := run(ctx, f.runner, op, "pfctl", "-s", "info")
	if err != nil {
		os.Remove(f.RulesPath)
		return err
	}
	state := ""
	if !strings.Contains(string(info), "Status: Enabled") {
		state = pfEnabledByUs
	}
	if err := os.WriteFile(f.StatePath, []byte(state), 0600); err != nil {
		os.Remove(f.RulesPath)
		return fault.IO(f.StatePath, err)
	}

	if _, err := run(ctx, f.runner, op, "pfctl", "-f", f.RulesPath); err != nil {
		f.rollback(ctx)
		return err
	}
	if state == pfEnabledByUs {
		if _, err := run(ctx, f.runner, op, "pfctl", "-e"); err != nil {
			f.rollback(ctx)
			return err
		}
	}

	logger.Info("Kill switch enabled")
	return nil
}

func (f *PF) rollback(ctx context.Context) {
	if err := f.DisableKillSwitch(ctx); err != nil {
		logger.Warning("Kill switch rollback failed: %v", err)
	}
}

// DisableKillSwitch reloads the system ruleset and turns pf off again if
// the kill switch had turned it on. Without a rules or state file there is
// nothing to undo.
func (f *PF) DisableKillSwitch(ctx context.Context) error {
	const op = "disable kill switch"

	state, stateErr := os.ReadFile(f.StatePath)
	_, rulesErr := os.Stat(f.RulesPath)
	if errors.Is(stateErr, os.ErrNotExist) && errors.Is(rulesErr, os.ErrNotExist) {
		return nil
	}

	logger.Info("Disabling pf kill switch")

	var firstErr error
	if _, err := run(ctx, f.runner, op, "pfctl", "-f", f.SystemConf); err != nil {
		firstErr = err
	}
	if strings.TrimSpace(string(state)) == pfEnabledByUs {
		if _, err := run(ctx, f.runner, op, "pfctl", "-d"); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, p := range []string{f.RulesPath, f.StatePath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = fault.IO(p, err)
		}
	}

	return firstErr
}

// EnableProxy sets and turns on the SOCKS proxy of the network service
// bound to the default-route interface.
func (f *PF) EnableProxy(ctx context.Context, port int) error {
	const op = "enable proxy"
	service, err := f.networkService(ctx)
	if err != nil {
		return err
	}

	logger.Info("Enabling system SOCKS proxy on %s (port %d)", service, port)
	if _, err := run(ctx, f.runner, op, "networksetup", "-setsocksfirewallproxy", service, "127.0.0.1", strconv.Itoa(port)); err != nil {
		return err
	}
	if _, err := run(ctx, f.runner, op, "networksetup", "-setsocksfirewallproxystate", service, "on"); err != nil {
		return err
	}
	return nil
}

// DisableProxy turns the SOCKS proxy off. It only touches the proxy
// setting; the kill switch is disabled separately.
func (f *PF) DisableProxy(ctx context.Context) error {
	service, err := f.networkService(ctx)
	if err != nil {
		if errors.Is(err, fault.ErrInterfaceNotFound) {
			// No default route means no service could carry a proxy setting.
			logger.Warning("Skipping proxy reset: %v", err)
			return nil
		}
		return err
	}

	logger.Info("Disabling system SOCKS proxy on %s", service)
	_, err = run(ctx, f.runner, "disable proxy", "networksetup", "-setsocksfirewallproxystate", service, "off")
	return err
}

// interfaceName returns the default-route interface, detected once.
func (f *PF) interfaceName(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.iface != "" {
		return f.iface, nil
	}

	out, err := f.runner.Run(ctx, "route", "-n", "get", "default")
	if err != nil {
		return "", fault.New(fault.KindInterfaceNotFound, "route -n get default", err)
	}
	iface := parseRouteInterface(string(out))
	if iface == "" {
		return "", fault.New(fault.KindInterfaceNotFound, "route -n get default", nil)
	}

	logger.Info("Detected network interface: %s", iface)
	f.iface = iface
	return iface, nil
}

// networkService maps the default-route interface to its networksetup
// service name, falling back to Wi-Fi.
func (f *PF) networkService(ctx context.Context) (string, error) {
	iface, err := f.interfaceName(ctx)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.service != "" {
		return f.service, nil
	}

	service := defaultNetworkService
	out, err := f.runner.Run(ctx, "networksetup", "-listallhardwareports")
	if err != nil {
		logger.Warning("Could not list hardware ports, using %q: %v", service, err)
	} else if s := parseHardwarePort(string(out), iface); s != "" {
		service = s
	} else {
		logger.Info("Could not detect service name, using default %q", service)
	}

	f.service = service
	return service, nil
}

// parseRouteInterface extracts the "interface:" value from route(8) output.
func parseRouteInterface(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "interface:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "interface:"))
		}
	}
	return ""
}

// parseHardwarePort finds the "Hardware Port:" line preceding the
// "Device: <iface>" line in networksetup -listallhardwareports output.
func parseHardwarePort(out, iface string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line != "Device: "+iface || i == 0 {
			continue
		}
		prev := strings.TrimSpace(lines[i-1])
		if strings.HasPrefix(prev, "Hardware Port:") {
			return strings.TrimSpace(strings.TrimPrefix(prev, "Hardware Port:"))
		}
	}
	return ""
}

// renderPFRules builds the ruleset. pf requires translation rules before
// filter rules; filter rules use quick so the first match wins.
func renderPFRules(iface string, rules *Rules) string {
	var b strings.Builder

	b.WriteString("# nipe kill switch (generated)\n")
	fmt.Fprintf(&b, "ext_if = \"%s\"\n", iface)
	fmt.Fprintf(&b, "proxy_user = \"%s\"\n", rules.Owner)
	fmt.Fprintf(&b, "lan = \"{ %s }\"\n", strings.Join(lanRanges, ", "))
	b.WriteString("\nset block-policy return\n\n")

	fmt.Fprintf(&b, "rdr pass on lo0 inet proto { tcp, udp } from any to any port 53 -> 127.0.0.1 port %d\n", rules.DNSPort)
	fmt.Fprintf(&b, "rdr pass on lo0 inet proto tcp from any to ! 127.0.0.0/8 -> 127.0.0.1 port %d\n\n", rules.TransPort)

	b.WriteString("block drop quick inet6 all\n")
	b.WriteString("pass quick on lo0 all\n")
	b.WriteString("pass out quick on $ext_if inet proto tcp from any to any flags A/A keep state\n")
	b.WriteString("pass out quick on $ext_if inet proto { tcp, udp } user $proxy_user keep state\n")
	if rules.AllowLAN {
		b.WriteString("pass out quick on $ext_if inet from any to $lan keep state\n")
	}
	b.WriteString("pass out quick on $ext_if route-to (lo0 127.0.0.1) inet proto { tcp, udp } from any to any port 53 keep state\n")
	b.WriteString("pass out quick on $ext_if route-to (lo0 127.0.0.1) inet proto tcp from any to any flags S/SA keep state\n")
	b.WriteString("block return out quick on $ext_if inet proto { udp, icmp } all\n")
	b.WriteString("block drop out quick on $ext_if all\n")

	return b.String()
}
