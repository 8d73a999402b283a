//go:build !darwin && !windows

package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns the per-user configuration path.
func GetConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "nipe", "config.yaml")
}

// defaultBaseDir is where the data directory, torrc and logs live.
func defaultBaseDir() string {
	return "/tmp/nipe"
}
