package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// DefaultConfigFileName is looked up in the working directory when no
// explicit --config is given.
const DefaultConfigFileName = ".commit-semver.ini"

// LoadFile overlays the INI file at path onto cfg. Keys absent from the file
// keep their current values. Secrets (token, proxy password) are never read
// from disk.
func LoadFile(path string, cfg *Config) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := f.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if _, err := ParseFlag(string(cfg.Build.RCMode)); err != nil {
		return fmt.Errorf("config file %s: build.rc_mode: %w", path, err)
	}
	return nil
}

// ResolveConfigPath returns explicit when set, else the default file in dir
// if it exists, else "".
func ResolveConfigPath(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	candidate := filepath.Join(dir, DefaultConfigFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
