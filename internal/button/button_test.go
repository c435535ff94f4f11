package button

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verte-zerg/tuibooth/internal/logging"
)

func TestDebouncerIgnoresBounce(t *testing.T) {
	d := debouncer{need: 3}
	samples := []bool{true, false, true, true, true, true, false, false, false, true}
	presses := 0
	for _, s := range samples {
		if d.sample(s) {
			presses++
		}
	}
	if presses != 1 {
		t.Fatalf("expected 1 press, got %d", presses)
	}
}

func TestDebouncerReportsEachPress(t *testing.T) {
	d := debouncer{need: 2}
	samples := []bool{true, true, false, false, true, true}
	presses := 0
	for _, s := range samples {
		if d.sample(s) {
			presses++
		}
	}
	if presses != 2 {
		t.Fatalf("expected 2 presses, got %d", presses)
	}
}

type scriptedInput struct {
	mu     sync.Mutex
	levels []bool
	closed atomic.Bool
}

func (s *scriptedInput) Pressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.levels) == 0 {
		return false
	}
	level := s.levels[0]
	s.levels = s.levels[1:]
	return level
}

func (s *scriptedInput) Close() error {
	s.closed.Store(true)
	return nil
}

func TestWatcherCallsOnPressAndCloses(t *testing.T) {
	input := &scriptedInput{levels: []bool{true, true, true, true, false, false, false}}
	w := NewWatcher(input, logging.Discard())
	w.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	pressed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func() { pressed <- struct{}{} }) }()

	select {
	case <-pressed:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for press")
	}
	cancel()
	<-done
	if !input.closed.Load() {
		t.Fatalf("expected input closed")
	}
	if len(pressed) != 0 {
		t.Fatalf("expected a single press")
	}
}
