// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"

	"github.com/verte-zerg/tuibooth/internal/model"
)

const appDir = "tuibooth"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// XDGStateHome returns the XDG state home or a default fallback.
func XDGStateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "state")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "config.toml")
}

// DefaultDBPath returns the default path for the SQLite ledger.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appDir, "tuibooth.db")
}

// DefaultTemplateDir returns the default template directory.
func DefaultTemplateDir() string {
	return filepath.Join(XDGDataHome(), appDir, "templates")
}

// DefaultDemoDir returns the default directory of demo frames.
func DefaultDemoDir() string {
	return filepath.Join(XDGDataHome(), appDir, "demo")
}

// DefaultPrintsDir returns the output folder of the simulated printer.
func DefaultPrintsDir() string {
	return filepath.Join(XDGDataHome(), appDir, "prints")
}

// DefaultModelPath returns the default style-transfer model location.
func DefaultModelPath() string {
	return filepath.Join(XDGDataHome(), appDir, "models", "style.onnx")
}

// DefaultMachineIDPath returns the machine ID cache file.
func DefaultMachineIDPath() string {
	return filepath.Join(XDGDataHome(), appDir, "machine_id")
}

// DefaultLogPath returns the kiosk log file.
func DefaultLogPath() string {
	return filepath.Join(XDGStateHome(), appDir, "tuibooth.log")
}

// ResolvePaths fills empty directory settings with their defaults.
func ResolvePaths(s *model.Settings) {
	if s.TemplateDir == "" {
		s.TemplateDir = DefaultTemplateDir()
	}
	if s.DemoDir == "" {
		s.DemoDir = DefaultDemoDir()
	}
	if s.PrintsDir == "" {
		s.PrintsDir = DefaultPrintsDir()
	}
	if s.ModelPath == "" {
		s.ModelPath = DefaultModelPath()
	}
}
