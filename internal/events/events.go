// Package events fans kiosk status out to operator clients.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/verte-zerg/tuibooth/internal/capture"
)

// Event kinds.
const (
	KindScreen  = "screen"
	KindCapture = "capture"
	KindWarning = "warning"
	KindSession = "session"
	KindDevice  = "device"
)

const clientBuffer = 64

// Event is one status message sent to SSE clients.
type Event struct {
	Time      string `json:"t"`
	Kind      string `json:"kind"`
	Level     string `json:"l,omitempty"`
	Msg       string `json:"msg,omitempty"`
	Screen    string `json:"screen,omitempty"`
	State     string `json:"state,omitempty"`
	Count     int    `json:"count,omitempty"`
	Shots     int    `json:"shots,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

// Status is the latest known kiosk state.
type Status struct {
	Screen      string    `json:"screen"`
	State       string    `json:"state,omitempty"`
	Shots       int       `json:"shots"`
	Remaining   *int      `json:"remaining,omitempty"`
	LastWarning string    `json:"lastWarning,omitempty"`
	LastSession string    `json:"lastSession,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Broadcaster distributes events to subscribers and keeps a status snapshot.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	status  Status
	now     func() time.Time
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan string]struct{}), now: time.Now}
}

// Subscribe returns a channel of JSON payloads and its cleanup function.
// The cleanup is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish updates the snapshot and sends evt to every subscriber.
// Slow clients miss messages instead of blocking the kiosk.
func (b *Broadcaster) Publish(evt Event) {
	now := b.now()
	evt.Time = now.Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	b.apply(evt, now)
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (b *Broadcaster) apply(evt Event, now time.Time) {
	b.status.UpdatedAt = now
	if evt.Screen != "" {
		if evt.Screen != b.status.Screen {
			b.status.State, b.status.Shots = "", 0
		}
		b.status.Screen = evt.Screen
	}
	if evt.State != "" {
		b.status.State = evt.State
	}
	if evt.Shots > 0 {
		b.status.Shots = evt.Shots
	}
	if evt.Remaining != nil {
		n := *evt.Remaining
		b.status.Remaining = &n
	}
	switch evt.Kind {
	case KindWarning:
		b.status.LastWarning = evt.Msg
	case KindSession:
		b.status.LastSession = evt.Msg
	}
}

// Status returns a copy of the current snapshot.
func (b *Broadcaster) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := b.status
	if st.Remaining != nil {
		n := *st.Remaining
		st.Remaining = &n
	}
	return st
}

// Screen announces a kiosk screen change.
func (b *Broadcaster) Screen(name string) {
	b.Publish(Event{Kind: KindScreen, Level: "info", Screen: name})
}

// Warn publishes an operator-visible warning.
func (b *Broadcaster) Warn(msg string) {
	b.Publish(Event{Kind: KindWarning, Level: "warn", Msg: msg})
}

// Session publishes the outcome of a finished guest session.
func (b *Broadcaster) Session(outcome string) {
	level := "info"
	if outcome != "completed" {
		level = "warn"
	}
	b.Publish(Event{Kind: KindSession, Level: level, Msg: outcome})
}

// Remaining publishes the licensed session count.
func (b *Broadcaster) Remaining(n int) {
	b.Publish(Event{Kind: KindDevice, Level: "info", Remaining: &n})
}

// Capture converts a capture event. Preview frames are not forwarded.
func (b *Broadcaster) Capture(e capture.Event) {
	evt, ok := FromCapture(e)
	if !ok {
		return
	}
	b.Publish(evt)
}

// FromCapture maps a capture event to a status event. ok is false for
// events that carry no operator-relevant change.
func FromCapture(e capture.Event) (Event, bool) {
	switch e.Kind {
	case capture.EventState:
		return Event{Kind: KindCapture, Level: "info", State: e.State.String(), Count: e.Count, Shots: e.Shots}, true
	case capture.EventCaptured:
		return Event{Kind: KindCapture, Level: "info", State: e.State.String(), Shots: e.Shots, Msg: "shot captured"}, true
	case capture.EventWarning:
		return Event{Kind: KindWarning, Level: "warn", State: e.State.String(), Msg: e.Message}, true
	case capture.EventFinished:
		return Event{Kind: KindCapture, Level: "info", State: e.State.String(), Shots: e.Shots, Msg: "capture finished"}, true
	default:
		return Event{}, false
	}
}
