package tray

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/verte-zerg/tuibooth/internal/api"
)

func TestTitlesForIdleKiosk(t *testing.T) {
	titles := TitlesFor(api.StatusResponse{})
	if titles.Status != "Kiosk: starting" || titles.Remaining != "Sessions left: ?" || titles.Warning != "No warnings" {
		t.Fatalf("unexpected titles %+v", titles)
	}
}

func TestTitlesForCapture(t *testing.T) {
	remaining := 7
	titles := TitlesFor(api.StatusResponse{
		Screen:      "capture",
		State:       "countdown",
		Shots:       2,
		Remaining:   &remaining,
		LastWarning: "camera not found",
	})
	if titles.Status != "Kiosk: capture (countdown) 2 shots" {
		t.Fatalf("unexpected status %q", titles.Status)
	}
	if titles.Remaining != "Sessions left: 7" {
		t.Fatalf("unexpected remaining %q", titles.Remaining)
	}
	if titles.Warning != "Warning: camera not found" {
		t.Fatalf("unexpected warning %q", titles.Warning)
	}
}

func TestIconIsPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(iconBytes))
	if err != nil {
		t.Fatalf("decode icon: %v", err)
	}
	if img.Bounds().Dx() != 22 {
		t.Fatalf("unexpected icon size %v", img.Bounds())
	}
}
