package firewall

import (
	"context"
	"strings"
	"testing"
)

// netshHost simulates the advfirewall rule table and the WinHTTP proxy.
type netshHost struct {
	rules map[string]string
	proxy string
}

func (h *netshHost) handle(name string, args []string) ([]byte, error) {
	line := strings.Join(args, " ")
	switch {
	case strings.HasPrefix(line, "advfirewall firewall show rule"):
		if _, ok := h.rules[strings.TrimPrefix(args[4], "name=")]; !ok {
			return nil, failure(name, args, "No rules match the specified criteria.")
		}
	case strings.HasPrefix(line, "advfirewall firewall delete rule"):
		n := strings.TrimPrefix(args[4], "name=")
		if _, ok := h.rules[n]; !ok {
			return nil, failure(name, args, "No rules match the specified criteria.")
		}
		delete(h.rules, n)
	case strings.HasPrefix(line, "advfirewall firewall add rule"):
		h.rules[strings.TrimPrefix(args[4], "name=")] = strings.Join(args[5:], " ")
	case line == "winhttp reset proxy":
		h.proxy = ""
	case strings.HasPrefix(line, "winhttp set proxy"):
		h.proxy = args[3]
	}
	return nil, nil
}

func TestNetshKillSwitch(t *testing.T) {
	host := &netshHost{rules: map[string]string{"Allow SSH": "dir=in action=allow"}}
	runner := &fakeRunner{handle: host.handle}
	fw := NewNetsh(runner)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := fw.EnableKillSwitch(ctx, testRules()); err != nil {
			t.Fatalf("EnableKillSwitch() error = %v", err)
		}
	}
	if got := host.rules[netshRuleName]; got != "dir=out action=block enable=yes profile=any" {
		t.Errorf("kill switch rule = %q", got)
	}
	if len(host.rules) != 2 {
		t.Errorf("rules = %v, want the kill switch rule once", host.rules)
	}

	if err := fw.DisableKillSwitch(ctx); err != nil {
		t.Fatalf("DisableKillSwitch() error = %v", err)
	}
	if _, ok := host.rules[netshRuleName]; ok || len(host.rules) != 1 {
		t.Errorf("rules after disable = %v", host.rules)
	}
}

func TestNetshDisableWhenNothingInstalled(t *testing.T) {
	host := &netshHost{rules: map[string]string{}}
	runner := &fakeRunner{handle: host.handle}
	fw := NewNetsh(runner)

	if err := fw.DisableKillSwitch(context.Background()); err != nil {
		t.Fatalf("DisableKillSwitch() error = %v", err)
	}
	if runner.ran("netsh advfirewall firewall delete") {
		t.Error("delete must not run when the rule is absent")
	}
	if err := fw.DisableProxy(context.Background()); err != nil {
		t.Fatalf("DisableProxy() error = %v", err)
	}
}

func TestNetshProxy(t *testing.T) {
	host := &netshHost{rules: map[string]string{}}
	fw := NewNetsh(&fakeRunner{handle: host.handle})
	ctx := context.Background()

	if err := fw.EnableProxy(ctx, 9050); err != nil {
		t.Fatalf("EnableProxy() error = %v", err)
	}
	if host.proxy != "127.0.0.1:9050" {
		t.Errorf("proxy = %q", host.proxy)
	}
	if err := fw.DisableProxy(ctx); err != nil {
		t.Fatalf("DisableProxy() error = %v", err)
	}
	if host.proxy != "" {
		t.Errorf("proxy = %q after reset", host.proxy)
	}
}
