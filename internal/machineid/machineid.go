// Package machineid derives the stable kiosk identifier used for licensing.
package machineid

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Hardware identifier sources, tried in order.
var (
	cpuSources   = []string{"/proc/cpuinfo"}
	boardSources = []string{
		"/sys/class/dmi/id/board_serial",
		"/sys/class/dmi/id/product_uuid",
		"/etc/machine-id",
	}
)

// Resolver computes the machine ID once and caches it on disk.
type Resolver struct {
	cachePath string
	readFile  func(string) ([]byte, error)

	mu sync.Mutex
	id string
}

// NewResolver creates a resolver caching to cachePath. An empty path disables the cache.
func NewResolver(cachePath string) *Resolver {
	return &Resolver{cachePath: cachePath, readFile: os.ReadFile}
}

// ID returns the cached ID, or derives and persists a new one.
func (r *Resolver) ID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != "" {
		return r.id, nil
	}
	if r.cachePath != "" {
		if data, err := r.readFile(r.cachePath); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				r.id = id
				return id, nil
			}
		}
	}

	id := r.derive()
	r.id = id
	if r.cachePath == "" {
		return id, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0o755); err != nil {
		return id, fmt.Errorf("failed to create machine id dir: %w", err)
	}
	if err := os.WriteFile(r.cachePath, []byte(id), 0o600); err != nil {
		return id, fmt.Errorf("failed to cache machine id: %w", err)
	}
	return id, nil
}

func (r *Resolver) derive() string {
	cpu := r.firstValue(cpuSources, cpuID)
	board := r.firstValue(boardSources, trimmed)
	if cpu == "" && board == "" {
		return Random()
	}
	if cpu == "" {
		cpu = "UNKNOWN_CPU"
	}
	if board == "" {
		board = "UNKNOWN_MB"
	}
	return Hash(cpu, board)
}

func (r *Resolver) firstValue(paths []string, parse func([]byte) string) string {
	for _, path := range paths {
		data, err := r.readFile(path)
		if err != nil {
			continue
		}
		if v := parse(data); v != "" {
			return v
		}
	}
	return ""
}

// Hash combines hardware identifiers into a 32-character upper-case hex ID.
func Hash(cpu, board string) string {
	sum := sha256.Sum256([]byte(cpu + "-" + board))
	return strings.ToUpper(hex.EncodeToString(sum[:16]))
}

// Random returns a fresh upper-case hex UUID.
func Random() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:]))
}

// Format groups the first 16 characters as XXXX-XXXX-XXXX-XXXX.
func Format(id string) string {
	if len(id) < 16 {
		return id
	}
	return id[0:4] + "-" + id[4:8] + "-" + id[8:12] + "-" + id[12:16]
}

func trimmed(data []byte) string {
	return strings.TrimSpace(string(data))
}

// cpuID prefers the SoC serial, then the first model name.
func cpuID(data []byte) string {
	var model string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "Serial":
			if value != "" {
				return value
			}
		case "model name", "Model":
			if model == "" {
				model = value
			}
		}
	}
	return model
}
