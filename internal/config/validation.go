package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version < 1 {
		return fmt.Errorf("invalid config version")
	}

	if err := c.Tor.Validate(); err != nil {
		return fmt.Errorf("tor config: %w", err)
	}

	if err := c.Rotation.Validate(); err != nil {
		return fmt.Errorf("rotation config: %w", err)
	}

	return nil
}

// Validate validates the proxy runtime configuration.
func (t *Tor) Validate() error {
	ports := []struct {
		name  string
		value int
	}{
		{"socks_port", t.SocksPort},
		{"control_port", t.ControlPort},
		{"dns_port", t.DNSPort},
		{"trans_port", t.TransPort},
	}
	seen := make(map[int]string, len(ports))
	for _, p := range ports {
		if p.value < 1 || p.value > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535", p.name)
		}
		if other, ok := seen[p.value]; ok {
			return fmt.Errorf("%s and %s both use port %d", other, p.name, p.value)
		}
		seen[p.value] = p.name
	}

	if t.DataDirectory == "" {
		return fmt.Errorf("data_directory is required")
	}
	if !filepath.IsAbs(t.DataDirectory) {
		return fmt.Errorf("data_directory must be absolute: %s", t.DataDirectory)
	}
	if t.RuntimeDir() == t.DataDirectory {
		return fmt.Errorf("data_directory must have a parent directory")
	}

	if t.UseBridges && len(t.Bridges) == 0 {
		return fmt.Errorf("use_bridges requires at least one bridge line")
	}
	for _, b := range t.Bridges {
		if strings.TrimSpace(b) == "" || strings.ContainsAny(b, "\r\n") {
			return fmt.Errorf("invalid bridge line: %q", b)
		}
	}
	for _, n := range t.ExitNodes {
		if strings.TrimSpace(n) == "" || strings.ContainsAny(n, ",{}\r\n") {
			return fmt.Errorf("invalid exit node: %q", n)
		}
	}
	if t.Country != "" && len(t.Country) != 2 {
		return fmt.Errorf("country must be a two-letter code: %q", t.Country)
	}

	return nil
}

// Validate validates rotation configuration.
func (r *Rotation) Validate() error {
	if r.AutoRotate && r.IntervalSeconds < 10 {
		return fmt.Errorf("interval_seconds must be at least 10 when auto_rotate is on")
	}
	return nil
}
