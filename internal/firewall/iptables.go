package firewall

import (
	"context"
	"strconv"

	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/procutil"
)

const (
	natChain    = "NIPE_NAT"
	filterChain = "NIPE_FILTER"
	ipv6Chain   = "NIPE_V6"

	// maxJumpDeletes bounds the loop removing duplicate OUTPUT jumps.
	maxJumpDeletes = 16
)

// chainRef names one dedicated chain and the table it lives in.
type chainRef struct {
	bin   string
	table string
	chain string
}

var iptablesChains = []chainRef{
	{"iptables", "nat", natChain},
	{"iptables", "filter", filterChain},
	{"ip6tables", "filter", ipv6Chain},
}

// Iptables implements the kill switch with dedicated iptables chains
// jumped to from OUTPUT, so removing them restores the previous ruleset
// untouched.
type Iptables struct {
	runner procutil.Runner
}

// NewIptables creates the packet-filter-table variant.
func NewIptables(runner procutil.Runner) *Iptables {
	return &Iptables{runner: runner}
}

// Name implements Firewall.
func (f *Iptables) Name() string { return "iptables" }

// EnableKillSwitch installs the nat and filter chains (and the IPv6 chain
// when requested) and hooks them into OUTPUT.
func (f *Iptables) EnableKillSwitch(ctx context.Context, rules *Rules) error {
	if err := rules.validate(); err != nil {
		return err
	}

	logger.Info("Enabling iptables kill switch (owner %s)", rules.Owner)

	// Start from a clean slate so a second enable does not duplicate rules.
	if err := f.DisableKillSwitch(ctx); err != nil {
		return err
	}

	if err := f.install(ctx, rules); err != nil {
		if derr := f.DisableKillSwitch(ctx); derr != nil {
			logger.Warning("Kill switch rollback failed: %v", derr)
		}
		return err
	}

	logger.Info("Kill switch enabled")
	return nil
}

func (f *Iptables) install(ctx context.Context, rules *Rules) error {
	const op = "enable kill switch"
	dns := strconv.Itoa(rules.DNSPort)
	trans := strconv.Itoa(rules.TransPort)

	// DNS is redirected before the loopback exemption so queries to a
	// local stub resolver still go through the proxy.
	nat := [][]string{
		{"-m", "state", "--state", "ESTABLISHED", "-j", "RETURN"},
		{"-m", "owner", "--uid-owner", rules.Owner, "-j", "RETURN"},
		{"-p", "udp", "--dport", "53", "-j", "REDIRECT", "--to-ports", dns},
		{"-p", "tcp", "--dport", "53", "-j", "REDIRECT", "--to-ports", dns},
		{"-d", "127.0.0.0/8", "-j", "RETURN"},
	}
	if rules.AllowLAN {
		for _, cidr := range lanRanges {
			nat = append(nat, []string{"-d", cidr, "-j", "RETURN"})
		}
	}
	nat = append(nat, []string{"-p", "tcp", "--syn", "-j", "REDIRECT", "--to-ports", trans})

	filter := [][]string{
		{"-m", "state", "--state", "ESTABLISHED,RELATED", "-j", "ACCEPT"},
		{"-o", "lo", "-j", "ACCEPT"},
		{"-m", "owner", "--uid-owner", rules.Owner, "-j", "ACCEPT"},
	}
	if rules.AllowLAN {
		for _, cidr := range lanRanges {
			filter = append(filter, []string{"-d", cidr, "-j", "ACCEPT"})
		}
	}
	filter = append(filter,
		[]string{"-p", "udp", "-j", "REJECT"},
		[]string{"-p", "icmp", "-j", "REJECT"},
		[]string{"-j", "REJECT"},
	)

	if err := f.buildChain(ctx, op, iptablesChains[0], nat); err != nil {
		return err
	}
	if err := f.buildChain(ctx, op, iptablesChains[1], filter); err != nil {
		return err
	}

	if rules.BlockIPv6 {
		v6 := [][]string{
			{"-o", "lo", "-j", "ACCEPT"},
			{"-m", "owner", "--uid-owner", rules.Owner, "-j", "ACCEPT"},
			{"-j", "REJECT"},
		}
		if err := f.buildChain(ctx, op, iptablesChains[2], v6); err != nil {
			return err
		}
	}

	return nil
}

// buildChain creates c, appends rules in order, then inserts the jump at
// the top of OUTPUT. The jump goes last so a half-built chain is never live.
func (f *Iptables) buildChain(ctx context.Context, op string, c chainRef, rules [][]string) error {
	if _, err := run(ctx, f.runner, op, c.bin, "-t", c.table, "-N", c.chain); err != nil {
		return err
	}
	for _, rule := range rules {
		args := append([]string{"-t", c.table, "-A", c.chain}, rule...)
		if _, err := run(ctx, f.runner, op, c.bin, args...); err != nil {
			return err
		}
	}
	_, err := run(ctx, f.runner, op, c.bin, "-t", c.table, "-I", "OUTPUT", "1", "-j", c.chain)
	return err
}

// DisableKillSwitch unhooks, flushes and deletes every nipe chain that
// exists. Chains that were never created are skipped.
func (f *Iptables) DisableKillSwitch(ctx context.Context) error {
	const op = "disable kill switch"
	var firstErr error

	for _, c := range iptablesChains {
		if !f.chainExists(ctx, c) {
			continue
		}

		for i := 0; i < maxJumpDeletes; i++ {
			if _, err := f.runner.Run(ctx, c.bin, "-t", c.table, "-D", "OUTPUT", "-j", c.chain); err != nil {
				break
			}
		}
		if _, err := run(ctx, f.runner, op, c.bin, "-t", c.table, "-F", c.chain); err != nil && firstErr == nil {
			firstErr = err
		}
		if _, err := run(ctx, f.runner, op, c.bin, "-t", c.table, "-X", c.chain); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (f *Iptables) chainExists(ctx context.Context, c chainRef) bool {
	_, err := f.runner.Run(ctx, c.bin, "-t", c.table, "-n", "-L", c.chain)
	return err == nil
}

// EnableProxy is a no-op: Linux has no system-wide SOCKS setting, and the
// nat chain already redirects TCP transparently.
func (f *Iptables) EnableProxy(ctx context.Context, port int) error {
	logger.Info("SOCKS proxy available at 127.0.0.1:%d", port)
	return nil
}

// DisableProxy is a no-op on Linux.
func (f *Iptables) DisableProxy(ctx context.Context) error {
	return nil
}
