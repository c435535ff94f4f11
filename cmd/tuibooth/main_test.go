package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/tuibooth/internal/config"
	"github.com/verte-zerg/tuibooth/internal/layout"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/template"
)

func TestApplyFlagsOnlyOverridesChanged(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("countdown", "9"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	s := model.DefaultSettings()
	s.WebcamIndex = 2
	s.ListenAddr = "0.0.0.0:9000"
	applyFlags(cmd, &s)
	if s.CountdownSeconds != 9 {
		t.Fatalf("expected countdown 9, got %d", s.CountdownSeconds)
	}
	if s.WebcamIndex != 2 {
		t.Fatalf("expected webcam from config to survive, got %d", s.WebcamIndex)
	}
	if s.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("expected listen address from config, got %q", s.ListenAddr)
	}
}

func TestApplyFlagsDefaultsListenAddr(t *testing.T) {
	s := model.DefaultSettings()
	applyFlags(newRootCmd(), &s)
	if s.ListenAddr != defaultListenAddr {
		t.Fatalf("expected %q, got %q", defaultListenAddr, s.ListenAddr)
	}
}

func TestValidateSettings(t *testing.T) {
	s := model.DefaultSettings()
	if err := validateSettings(s); err != nil {
		t.Fatalf("expected defaults to be valid: %v", err)
	}
	s.CountdownSeconds = 0
	if err := validateSettings(s); err == nil {
		t.Fatalf("expected countdown error")
	}
}

func testTemplates() []template.Template {
	strip := template.Metadata{
		Name:       "Wedding",
		Resolution: template.Resolution{Width: 600, Height: 1800},
		PhotoSlots: []template.Rect{{X: 10, Y: 10, Width: 100, Height: 100}},
		QRSlot:     &template.Rect{X: 400, Y: 1600, Width: 150, Height: 150},
	}
	fourR := template.Metadata{
		Name:       "Birthday",
		Resolution: template.Resolution{Width: 1200, Height: 1800},
	}
	return []template.Template{
		{Name: "Wedding", UsePath: "/t/Wedding.png", Meta: strip},
		{Name: "Birthday", UsePath: "/t/Birthday.png", Meta: fourR},
	}
}

func TestWriteTemplatesTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTemplates(&buf, testTemplates(), "table", 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "strip") || !strings.Contains(lines[1], "600x1800") || !strings.Contains(lines[1], "yes") {
		t.Fatalf("unexpected strip row %q", lines[1])
	}
	if !strings.Contains(lines[2], "4R") || !strings.Contains(lines[2], "no") {
		t.Fatalf("unexpected 4R row %q", lines[2])
	}
}

func TestWriteTemplatesJSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTemplates(&buf, testTemplates(), "json", 0); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var infos []templateInfo
	if err := json.Unmarshal(buf.Bytes(), &infos); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(infos) != 2 || infos[0].Metadata.QRSlot == nil {
		t.Fatalf("unexpected json output %+v", infos)
	}

	buf.Reset()
	if err := writeTemplates(&buf, testTemplates(), "yaml", 0); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	var decoded []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(decoded) != 2 || decoded[1]["name"] != "Birthday" {
		t.Fatalf("unexpected yaml output %v", decoded)
	}
}

func TestWriteTemplatesRejectsUnknownFormat(t *testing.T) {
	if err := writeTemplates(&bytes.Buffer{}, testTemplates(), "xml", 0); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestPrintSinksKeepJobSequencePerFolder(t *testing.T) {
	s := model.DefaultSettings()
	s.PrinterSimulation = true
	s.PrintsDir = t.TempDir()
	live := config.NewLive(filepath.Join(t.TempDir(), "config.toml"), s)
	sinks := newPrintSinks(live)

	job := layout.Job{Description: "strip", Page: image.NewRGBA(image.Rect(0, 0, 4, 6)), Copies: 1}
	var names []string
	for i := 0; i < 2; i++ {
		res, err := sinks.Print(context.Background(), job, "Sim")
		if err != nil {
			t.Fatalf("print: %v", err)
		}
		names = append(names, filepath.Base(res.Paths[0]))
	}
	if !strings.Contains(names[0], "_001_") || !strings.Contains(names[1], "_002_") {
		t.Fatalf("expected increasing job numbers, got %v", names)
	}

	other := t.TempDir()
	if _, err := live.Update(func(s *model.Settings) { s.PrintsDir = other }); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	res, err := sinks.Print(context.Background(), job, "Sim")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if filepath.Dir(res.Paths[0]) != other || !strings.Contains(filepath.Base(res.Paths[0]), "_001_") {
		t.Fatalf("expected a fresh sequence in the new folder, got %s", res.Paths[0])
	}
}
