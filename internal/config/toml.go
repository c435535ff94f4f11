// Package config provides configuration helpers and TOML parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// ErrMalformed marks a config file that exists but could not be decoded.
var ErrMalformed = errors.New("malformed config")

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Camera  CameraConfig  `toml:"camera"`
	Printer PrinterConfig `toml:"printer"`
	UI      UIConfig      `toml:"ui"`
	API     APIConfig     `toml:"api"`
	Style   StyleConfig   `toml:"style"`
	Kiosk   KioskConfig   `toml:"kiosk"`
}

// CameraConfig maps camera-related settings.
type CameraConfig struct {
	Simulation       *bool   `toml:"simulation"`
	WebcamIndex      *int    `toml:"webcam-index"`
	Invert           *bool   `toml:"invert"`
	CountdownSeconds *int    `toml:"countdown-seconds"`
	DemoDir          *string `toml:"demo-dir"`
}

// PrinterConfig maps printer profiles and the simulation sink.
type PrinterConfig struct {
	Simulation    *bool   `toml:"simulation"`
	Name          *string `toml:"name"`
	Strip         *string `toml:"strip"`
	FourR         *string `toml:"four-r"`
	OutputDir     *string `toml:"output-dir"`
	SettleSeconds *int    `toml:"settle-seconds"`
}

// UIConfig maps display settings.
type UIConfig struct {
	Font        *string `toml:"font"`
	TemplateDir *string `toml:"template-dir"`
}

// APIConfig maps the admin backend location.
type APIConfig struct {
	BaseURL *string `toml:"base-url"`
}

// StyleConfig maps the style-transfer model location.
type StyleConfig struct {
	ModelPath *string `toml:"model-path"`
}

// KioskConfig maps process-level options.
type KioskConfig struct {
	Listen    *string `toml:"listen"`
	ButtonPin *int    `toml:"button-pin"`
	LogLevel  *string `toml:"log-level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cfg, nil
}

// Load resolves settings from the file at path over the defaults.
// The returned settings are always usable; a non-nil error only reports why
// the file was ignored.
func Load(path string) (model.Settings, error) {
	settings := model.DefaultSettings()
	fileCfg, err := LoadConfig(path)
	if err != nil {
		return settings, err
	}
	fileCfg.Apply(&settings)
	return settings, nil
}

// Apply overlays every value present in the file onto settings.
func (c FileConfig) Apply(s *model.Settings) {
	setBool(&s.CameraSimulation, c.Camera.Simulation)
	setInt(&s.WebcamIndex, c.Camera.WebcamIndex)
	setBool(&s.InvertCamera, c.Camera.Invert)
	setInt(&s.CountdownSeconds, c.Camera.CountdownSeconds)
	setString(&s.DemoDir, c.Camera.DemoDir)

	setBool(&s.PrinterSimulation, c.Printer.Simulation)
	setString(&s.Printer, c.Printer.Name)
	setString(&s.PrinterStrip, c.Printer.Strip)
	setString(&s.Printer4R, c.Printer.FourR)
	setString(&s.PrintsDir, c.Printer.OutputDir)
	setInt(&s.PrintSettleS, c.Printer.SettleSeconds)

	setString(&s.Font, c.UI.Font)
	setString(&s.TemplateDir, c.UI.TemplateDir)
	setString(&s.APIBaseURL, c.API.BaseURL)
	setString(&s.ModelPath, c.Style.ModelPath)

	setString(&s.ListenAddr, c.Kiosk.Listen)
	setInt(&s.ButtonPin, c.Kiosk.ButtonPin)
	setString(&s.LogLevel, c.Kiosk.LogLevel)

	if s.CountdownSeconds <= 0 {
		s.CountdownSeconds = model.DefaultCountdownSeconds
	}
	if s.WebcamIndex < 0 {
		s.WebcamIndex = 0
	}
}

// FromSettings builds a fully populated file config.
func FromSettings(s model.Settings) FileConfig {
	return FileConfig{
		Camera: CameraConfig{
			Simulation:       &s.CameraSimulation,
			WebcamIndex:      &s.WebcamIndex,
			Invert:           &s.InvertCamera,
			CountdownSeconds: &s.CountdownSeconds,
			DemoDir:          &s.DemoDir,
		},
		Printer: PrinterConfig{
			Simulation:    &s.PrinterSimulation,
			Name:          &s.Printer,
			Strip:         &s.PrinterStrip,
			FourR:         &s.Printer4R,
			OutputDir:     &s.PrintsDir,
			SettleSeconds: &s.PrintSettleS,
		},
		UI:    UIConfig{Font: &s.Font, TemplateDir: &s.TemplateDir},
		API:   APIConfig{BaseURL: &s.APIBaseURL},
		Style: StyleConfig{ModelPath: &s.ModelPath},
		Kiosk: KioskConfig{Listen: &s.ListenAddr, ButtonPin: &s.ButtonPin, LogLevel: &s.LogLevel},
	}
}

// Save writes settings to path, replacing the file atomically.
func Save(path string, s model.Settings) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := toml.NewEncoder(tmpFile).Encode(FromSettings(s)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func setBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

func setInt(target *int, value *int) {
	if value != nil {
		*target = *value
	}
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}
