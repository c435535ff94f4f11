package tui

import "sync"

// tasks counts background work started by the model. Once closed, new work is refused.
type tasks struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (t *tasks) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *tasks) done() {
	t.wg.Done()
}

func (t *tasks) closeAndWait() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// Wait refuses new background work and blocks until the capture session,
// activation and pipeline steps already running have returned. Cancel the
// context passed to NewModel first.
func (m *Model) Wait() {
	m.tasks.closeAndWait()
}
