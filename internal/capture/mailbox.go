package capture

import (
	"sync"
	"sync/atomic"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Mailbox hands the newest preview frame to the control loop.
// Publishing never blocks; an unconsumed frame is overwritten.
type Mailbox struct {
	mu     sync.Mutex
	frame  model.Frame
	full   bool
	notify chan struct{}
	drops  atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Publish stores frame, replacing any frame not yet taken.
func (m *Mailbox) Publish(frame model.Frame) {
	m.mu.Lock()
	if m.full {
		m.drops.Add(1)
	}
	m.frame = frame
	m.full = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Notify signals that a frame may be waiting.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notify
}

// Take removes and returns the pending frame.
func (m *Mailbox) Take() (model.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return model.Frame{}, false
	}
	frame := m.frame
	m.frame = model.Frame{}
	m.full = false
	return frame, true
}

// Drops returns how many frames were overwritten before being taken.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
