package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/tuibooth/internal/model"
)

func TestLiveUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	live := NewLive(path, model.DefaultSettings())

	var seen model.Settings
	live.Watch(func(s model.Settings) { seen = s })

	got, err := live.Update(func(s *model.Settings) { s.CountdownSeconds = 9 })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CountdownSeconds != 9 || live.Get().CountdownSeconds != 9 || seen.CountdownSeconds != 9 {
		t.Fatalf("expected countdown 9, got %d", got.CountdownSeconds)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CountdownSeconds != 9 {
		t.Fatalf("expected saved countdown 9, got %d", loaded.CountdownSeconds)
	}
}

func TestLiveUpdateKeepsSettingsOnSaveFailure(t *testing.T) {
	live := NewLive("unused", model.DefaultSettings())
	live.save = func(string, model.Settings) error { return errors.New("disk full") }

	got, err := live.Update(func(s *model.Settings) { s.CountdownSeconds = 9 })
	if err == nil {
		t.Fatalf("expected error")
	}
	if got.CountdownSeconds != model.DefaultCountdownSeconds || live.Get().CountdownSeconds != model.DefaultCountdownSeconds {
		t.Fatalf("expected settings unchanged")
	}
}
