// Package torrc renders the supervised proxy's runtime configuration.
package torrc

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/user/nipe/internal/config"
)

// pluginPaths lists where obfs4proxy is commonly installed.
var pluginPaths = map[string][]string{
	"windows": {
		`C:\Program Files\Tor\obfs4proxy.exe`,
		`C:\Program Files (x86)\Tor\obfs4proxy.exe`,
	},
	"default": {
		"/usr/bin/obfs4proxy",
		"/usr/local/bin/obfs4proxy",
		"/opt/homebrew/bin/obfs4proxy",
	},
}

// Generator renders torrc text. Exists reports whether a file is present
// and is only consulted when bridges are on without an explicit plugin.
type Generator struct {
	GOOS   string
	Exists func(path string) bool
}

// New returns a generator for the running host.
func New() *Generator {
	return &Generator{
		GOOS: runtime.GOOS,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Render returns the runtime configuration for cfg. The output depends
// only on cfg and the transport plugin probe, so identical input yields
// byte-identical text.
func (g *Generator) Render(cfg *config.Tor) string {
	var b strings.Builder

	b.WriteString("# nipe runtime configuration (generated, do not edit)\n")
	fmt.Fprintf(&b, "SocksPort %d\n", cfg.SocksPort)
	fmt.Fprintf(&b, "ControlPort %d\n", cfg.ControlPort)
	fmt.Fprintf(&b, "DNSPort %d\n", cfg.DNSPort)
	fmt.Fprintf(&b, "TransPort %d\n", cfg.TransPort)
	fmt.Fprintf(&b, "DataDirectory %s\n", cfg.DataDirectory)
	b.WriteString("\n")
	b.WriteString("Log notice stdout\n")
	b.WriteString("DisableNetwork 0\n")
	b.WriteString("AutomapHostsOnResolve 1\n")
	b.WriteString("VirtualAddrNetworkIPv4 10.192.0.0/10\n")

	if cfg.UseBridges {
		b.WriteString("\n# Bridges\n")
		b.WriteString("UseBridges 1\n")
		fmt.Fprintf(&b, "ClientTransportPlugin obfs4 exec %s\n", g.transportPlugin(cfg))
		for _, bridge := range cfg.Bridges {
			fmt.Fprintf(&b, "Bridge %s\n", strings.TrimSpace(bridge))
		}
	}

	switch {
	case len(cfg.ExitNodes) > 0:
		b.WriteString("\n# Exit nodes\n")
		fmt.Fprintf(&b, "ExitNodes %s\n", exitNodeList(cfg.ExitNodes))
	case cfg.Country != "":
		b.WriteString("\n# Exit country\n")
		fmt.Fprintf(&b, "ExitNodes {%s}\n", strings.ToLower(cfg.Country))
		b.WriteString("StrictNodes 1\n")
	}

	return b.String()
}

// Write renders cfg and stores it at path with mode 0644.
func (g *Generator) Write(cfg *config.Tor, path string) error {
	if err := os.WriteFile(path, []byte(g.Render(cfg)), 0644); err != nil {
		return fmt.Errorf("failed to write runtime config: %w", err)
	}
	return nil
}

func (g *Generator) transportPlugin(cfg *config.Tor) string {
	if cfg.ClientTransportPlugin != "" {
		return cfg.ClientTransportPlugin
	}

	candidates, ok := pluginPaths[g.GOOS]
	if !ok {
		candidates = pluginPaths["default"]
	}
	for _, p := range candidates {
		if g.Exists != nil && g.Exists(p) {
			return p
		}
	}

	if g.GOOS == "windows" {
		return "obfs4proxy.exe"
	}
	return "/usr/bin/obfs4proxy"
}

// exitNodeList formats two-letter country codes as {cc}; fingerprints and
// nicknames pass through unchanged.
func exitNodeList(nodes []string) string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		n = strings.TrimSpace(n)
		if isCountryCode(n) {
			out = append(out, "{"+strings.ToLower(n)+"}")
			continue
		}
		out = append(out, n)
	}
	return strings.Join(out, ",")
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
