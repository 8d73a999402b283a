// Package config handles nipe configuration loading, saving, and validation.
package config

import "path/filepath"

// Config represents the main configuration structure.
type Config struct {
	Version  int      `yaml:"version"`
	Tor      Tor      `yaml:"tor"`
	Firewall Firewall `yaml:"firewall"`
	Rotation Rotation `yaml:"rotation"`
	Metrics  Metrics  `yaml:"metrics"`
	Log      Log      `yaml:"log"`
}

// Tor is the runtime configuration of the supervised proxy process.
type Tor struct {
	SocksPort             int      `yaml:"socks_port"`
	ControlPort           int      `yaml:"control_port"`
	DNSPort               int      `yaml:"dns_port"`
	TransPort             int      `yaml:"trans_port"`
	DataDirectory         string   `yaml:"data_directory"`
	UseBridges            bool     `yaml:"use_bridges"`
	ClientTransportPlugin string   `yaml:"client_transport_plugin,omitempty"`
	Bridges               []string `yaml:"bridges,omitempty"`
	ExitNodes             []string `yaml:"exit_nodes,omitempty"`
	Country               string   `yaml:"country,omitempty"` // shorthand, applied with strict mode
}

// Firewall is the kill switch policy.
type Firewall struct {
	EnableKillSwitch bool `yaml:"enable_kill_switch"`
	AllowLAN         bool `yaml:"allow_lan"`
	BlockIPv6        bool `yaml:"block_ipv6"`
}

// Rotation controls periodic identity rotation in daemon mode.
type Rotation struct {
	AutoRotate      bool `yaml:"auto_rotate"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// Metrics configures the Prometheus endpoint served in daemon mode.
type Metrics struct {
	Listen string `yaml:"listen,omitempty"` // empty disables the endpoint
}

// Log configures the nipe log file.
type Log struct {
	Path string `yaml:"path,omitempty"`
}

// RuntimeDir is the directory holding the data directory, the generated
// runtime configuration and the proxy log.
func (t *Tor) RuntimeDir() string {
	return filepath.Dir(t.DataDirectory)
}

// TorrcPath is the well-known location of the generated runtime configuration.
func (t *Tor) TorrcPath() string {
	return filepath.Join(t.RuntimeDir(), "torrc")
}

// LogPath is where the proxy's stdout and stderr are written.
func (t *Tor) LogPath() string {
	return filepath.Join(t.RuntimeDir(), "tor.log")
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	base := defaultBaseDir()
	return &Config{
		Version: 1,
		Tor: Tor{
			SocksPort:     9050,
			ControlPort:   9051,
			DNSPort:       9061,
			TransPort:     9040,
			DataDirectory: filepath.Join(base, "tor-data"),
		},
		Firewall: Firewall{
			EnableKillSwitch: true,
			AllowLAN:         true,
			BlockIPv6:        true,
		},
		Rotation: Rotation{
			AutoRotate:      false,
			IntervalSeconds: 60,
		},
		Log: Log{
			Path: filepath.Join(base, "nipe.log"),
		},
	}
}
