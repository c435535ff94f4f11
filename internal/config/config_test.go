package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/tuibooth/internal/model"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if settings != model.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", settings)
	}
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[camera\nsimulation = ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	settings, err := Load(path)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if settings != model.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", settings)
	}
}

func TestLoadOverlaysFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[camera]
simulation = false
webcam-index = 2
invert = true
countdown-seconds = 3

[printer]
strip = "DNP Strip"
four-r = "DNP 4R"

[api]
base-url = "http://localhost:3000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.CameraSimulation {
		t.Fatalf("expected camera simulation disabled")
	}
	if !settings.PrinterSimulation {
		t.Fatalf("expected printer simulation to keep its default")
	}
	if settings.WebcamIndex != 2 || !settings.InvertCamera || settings.CountdownSeconds != 3 {
		t.Fatalf("unexpected camera settings: %+v", settings)
	}
	if settings.PrinterStrip != "DNP Strip" || settings.Printer4R != "DNP 4R" {
		t.Fatalf("unexpected printers: %+v", settings)
	}
	if settings.Font != model.DefaultFont {
		t.Fatalf("expected default font, got %q", settings.Font)
	}
	if settings.APIBaseURL != "http://localhost:3000" {
		t.Fatalf("unexpected base url %q", settings.APIBaseURL)
	}
}

func TestLoadRejectsNonPositiveCountdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[camera]\ncountdown-seconds = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.CountdownSeconds != model.DefaultCountdownSeconds {
		t.Fatalf("expected default countdown, got %d", settings.CountdownSeconds)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := model.DefaultSettings()
	want.CameraSimulation = false
	want.PrinterStrip = "Strip Printer"
	want.CountdownSeconds = 7
	want.ButtonPin = 17
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}
