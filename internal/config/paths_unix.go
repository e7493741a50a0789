//go:build linux || darwin

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".config", "resmon", "config.yaml"),
		filepath.Join(home, ".resmon.yaml"),
		"/etc/resmon/config.yaml",
	}
}
