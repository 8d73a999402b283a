//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns the configuration path under
// ~/Library/Application Support/nipe/.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, "Library", "Application Support", "nipe", "config.yaml")
}

func defaultBaseDir() string {
	return "/tmp/nipe"
}
