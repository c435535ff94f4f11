package capture

import (
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// EventKind classifies runner events.
type EventKind int

const (
	EventState EventKind = iota
	EventPreview
	EventCue
	EventCaptured
	EventWarning
	EventFinished
)

// String returns the event label.
func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventPreview:
		return "preview"
	case EventCue:
		return "cue"
	case EventCaptured:
		return "captured"
	case EventWarning:
		return "warning"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is published by the Runner as the session progresses.
type Event struct {
	Kind    EventKind
	State   State
	Count   int
	Shots   int
	Frame   model.Frame
	Demo    bool
	Message string
	At      time.Time
}

// Observer receives runner events on the control loop. It must not block for long.
type Observer func(Event)
