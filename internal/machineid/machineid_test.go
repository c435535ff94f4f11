package machineid

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func fakeFiles(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if v, ok := files[path]; ok {
			return []byte(v), nil
		}
		if data, err := os.ReadFile(path); err == nil && filepath.Base(path) == "machine_id" {
			return data, nil
		}
		return nil, fs.ErrNotExist
	}
}

var hexID = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestIDHashesHardwareAndCaches(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "sub", "machine_id")
	r := NewResolver(cache)
	r.readFile = fakeFiles(map[string]string{
		"/proc/cpuinfo":                  "processor\t: 0\nmodel name\t: ARMv8\nSerial\t\t: 10000000abcdef\n",
		"/sys/class/dmi/id/board_serial": "BOARD-42\n",
	})
	id, err := r.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	if id != Hash("10000000abcdef", "BOARD-42") {
		t.Fatalf("unexpected id %s", id)
	}
	if !hexID.MatchString(id) {
		t.Fatalf("expected 32 upper-case hex chars, got %s", id)
	}
	data, err := os.ReadFile(cache)
	if err != nil || string(data) != id {
		t.Fatalf("expected cached id, got %q %v", data, err)
	}
}

func TestIDPrefersCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "machine_id")
	if err := os.WriteFile(cache, []byte("CACHEDID\n"), 0o600); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	r := NewResolver(cache)
	r.readFile = fakeFiles(map[string]string{"/proc/cpuinfo": "Serial: 1\n"})
	id, err := r.ID()
	if err != nil || id != "CACHEDID" {
		t.Fatalf("expected cached id, got %q %v", id, err)
	}
}

func TestIDFallsBackToRandom(t *testing.T) {
	r := NewResolver("")
	r.readFile = func(string) ([]byte, error) { return nil, errors.New("denied") }
	id, err := r.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	if !hexID.MatchString(id) {
		t.Fatalf("expected hex fallback id, got %s", id)
	}
	again, _ := r.ID()
	if again != id {
		t.Fatalf("expected stable id within process")
	}
}

func TestIDMissingBoardUsesMarker(t *testing.T) {
	r := NewResolver("")
	r.readFile = fakeFiles(map[string]string{"/proc/cpuinfo": "model name : Intel(R) Core\n"})
	id, _ := r.ID()
	if id != Hash("Intel(R) Core", "UNKNOWN_MB") {
		t.Fatalf("unexpected id %s", id)
	}
}

func TestFormat(t *testing.T) {
	if got := Format("0123456789ABCDEF0123"); got != "0123-4567-89AB-CDEF" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := Format("short"); got != "short" {
		t.Fatalf("unexpected short format %q", got)
	}
}
