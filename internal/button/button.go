// Package button turns a GPIO push-button into kiosk key presses.
package button

import (
	"context"
	"log/slog"
	"time"
)

// Polling defaults.
const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultDebounce     = 3
)

// Input reads the button level. Pressed is true while the button is held.
type Input interface {
	Pressed() bool
	Close() error
}

// Watcher polls an Input and reports debounced presses.
type Watcher struct {
	input    Input
	interval time.Duration
	debounce int
	logger   *slog.Logger
}

// NewWatcher creates a watcher with the default poll interval and debounce count.
func NewWatcher(input Input, logger *slog.Logger) *Watcher {
	return &Watcher{input: input, interval: DefaultPollInterval, debounce: DefaultDebounce, logger: logger}
}

// Run polls until ctx is done and calls onPress once per press, on the
// released-to-pressed edge. The input is closed on return.
func (w *Watcher) Run(ctx context.Context, onPress func()) error {
	defer func() {
		if err := w.input.Close(); err != nil {
			w.logger.Warn("button close failed", "error", err)
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var d debouncer
	d.need = w.debounce
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if d.sample(w.input.Pressed()) {
			w.logger.Debug("button pressed")
			onPress()
		}
	}
}

// debouncer accepts a level change after need equal consecutive samples.
type debouncer struct {
	need    int
	stable  bool
	pending bool
	count   int
}

// sample records one reading and reports a confirmed press edge.
func (d *debouncer) sample(level bool) bool {
	if level == d.stable {
		d.count = 0
		return false
	}
	if level != d.pending {
		d.pending = level
		d.count = 0
	}
	d.count++
	if d.count < d.need {
		return false
	}
	d.stable = level
	d.count = 0
	return level
}
