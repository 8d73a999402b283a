package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Tor.SocksPort != 9050 || cfg.Tor.ControlPort != 9051 || cfg.Tor.DNSPort != 9061 || cfg.Tor.TransPort != 9040 {
		t.Errorf("unexpected default ports: %+v", cfg.Tor)
	}
	if !cfg.Firewall.EnableKillSwitch || !cfg.Firewall.AllowLAN || !cfg.Firewall.BlockIPv6 {
		t.Errorf("unexpected default firewall policy: %+v", cfg.Firewall)
	}
	if filepath.Base(cfg.Tor.DataDirectory) != "tor-data" {
		t.Errorf("DataDirectory = %s", cfg.Tor.DataDirectory)
	}
}

func TestTorPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nipe")
	tor := Tor{DataDirectory: filepath.Join(dir, "tor-data")}

	if tor.RuntimeDir() != dir {
		t.Errorf("RuntimeDir() = %s, want %s", tor.RuntimeDir(), dir)
	}
	if tor.TorrcPath() != filepath.Join(dir, "torrc") {
		t.Errorf("TorrcPath() = %s", tor.TorrcPath())
	}
	if tor.LogPath() != filepath.Join(dir, "tor.log") {
		t.Errorf("LogPath() = %s", tor.LogPath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero version", func(c *Config) { c.Version = 0 }, "version"},
		{"port out of range", func(c *Config) { c.Tor.SocksPort = 70000 }, "socks_port"},
		{"duplicate ports", func(c *Config) { c.Tor.DNSPort = c.Tor.SocksPort }, "both use port"},
		{"relative data dir", func(c *Config) { c.Tor.DataDirectory = "tor-data" }, "absolute"},
		{"bridges required", func(c *Config) { c.Tor.UseBridges = true }, "bridge"},
		{"bad exit node", func(c *Config) { c.Tor.ExitNodes = []string{"us,de"} }, "exit node"},
		{"bad country", func(c *Config) { c.Tor.Country = "usa" }, "country"},
		{"rotation too fast", func(c *Config) {
			c.Rotation.AutoRotate = true
			c.Rotation.IntervalSeconds = 1
		}, "interval_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Tor.DataDirectory = filepath.Join(t.TempDir(), "tor-data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestManagerLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nipe", "config.yaml")
	m := NewManager(path)

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Get().Tor.SocksPort != 9050 {
		t.Errorf("expected defaults, got %+v", m.Get().Tor)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written: %v", err)
	}
}

func TestManagerLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
tor:
  socks_port: 9150
  control_port: 9151
  dns_port: 9153
  trans_port: 9140
  data_directory: /var/lib/nipe/tor-data
  exit_nodes: [us, de]
firewall:
  enable_kill_switch: false
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := m.Get()
	if cfg.Tor.SocksPort != 9150 || len(cfg.Tor.ExitNodes) != 2 {
		t.Errorf("tor section not loaded: %+v", cfg.Tor)
	}
	if cfg.Firewall.EnableKillSwitch {
		t.Error("enable_kill_switch should be false")
	}
	if cfg.Rotation.IntervalSeconds != 60 {
		t.Errorf("missing keys should keep defaults, got interval %d", cfg.Rotation.IntervalSeconds)
	}
}

func TestManagerUpdateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	bad := *m.Get()
	bad.Tor.ControlPort = 0
	if err := m.Update(&bad); err == nil {
		t.Fatal("expected Update to reject invalid config")
	}
	if m.Get().Tor.ControlPort != 9051 {
		t.Error("invalid update must not replace the current config")
	}
}
