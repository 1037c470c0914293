package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns the absolute local data directory.
func (c *Config) DataDir() string {
	dir := expandHomeDir(c.Storage.DataDir)
	if dir == "" {
		dir = ".mlf"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// DatabasePath returns the SQLite database path, defaulting to
// <data_dir>/mlf.db.
func (c *Config) DatabasePath() string {
	if p := expandHomeDir(c.Storage.DatabasePath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir(), "mlf.db")
}

// MediaDir returns where the local driver keeps uploaded objects,
// defaulting to <data_dir>/media.
func (c *Config) MediaDir() string {
	if p := expandHomeDir(c.Storage.MediaDir); p != "" {
		return p
	}
	return filepath.Join(c.DataDir(), "media")
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
