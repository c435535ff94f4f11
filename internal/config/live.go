package config

import (
	"sync"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Live holds the current settings of a running process and persists every change.
type Live struct {
	path string
	save func(string, model.Settings) error

	mu       sync.RWMutex
	settings model.Settings
	watchers []func(model.Settings)
}

// NewLive wraps settings loaded from path.
func NewLive(path string, settings model.Settings) *Live {
	return &Live{path: path, save: Save, settings: settings}
}

// Get returns a copy of the current settings.
func (l *Live) Get() model.Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// Update applies fn to a copy of the settings and saves the result. The
// in-memory settings only change when the save succeeds.
func (l *Live) Update(fn func(*model.Settings)) (model.Settings, error) {
	l.mu.Lock()
	next := l.settings
	fn(&next)
	if err := l.save(l.path, next); err != nil {
		l.mu.Unlock()
		return l.settings, err
	}
	l.settings = next
	watchers := append([]func(model.Settings){}, l.watchers...)
	l.mu.Unlock()

	for _, w := range watchers {
		w(next)
	}
	return next, nil
}

// Watch registers fn to be called after every successful update.
func (l *Live) Watch(fn func(model.Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}
