// Package capture drives the countdown and shutter for one guest session.
package capture

import (
	"errors"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// ErrNoFrameAvailable is returned when no frame source produced a picture at shutter time.
var ErrNoFrameAvailable = errors.New("no frame available")

// State is a capture session state.
type State int

const (
	StateInitializing State = iota
	StateWaitingForCamera
	StateCountdown
	StateSmile
	StateCapturing
	StatePostCapture
	StateFinished
)

// String returns the state label.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWaitingForCamera:
		return "waiting"
	case StateCountdown:
		return "countdown"
	case StateSmile:
		return "smile"
	case StateCapturing:
		return "capturing"
	case StatePostCapture:
		return "post-capture"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Timing holds the design constants of the capture flow.
type Timing struct {
	CountdownStart     int
	Tick               time.Duration
	CueLead            time.Duration
	ReadyFloor         time.Duration
	ReadyCeiling       time.Duration
	PostCapturePause   time.Duration
	FinalPause         time.Duration
	ShotCount          int
	MaxCaptureFailures int
}

// DefaultTiming returns the kiosk timing with the given countdown start.
func DefaultTiming(countdown int) Timing {
	if countdown <= 0 {
		countdown = model.DefaultCountdownSeconds
	}
	return Timing{
		CountdownStart:     countdown,
		Tick:               time.Second,
		CueLead:            500 * time.Millisecond,
		ReadyFloor:         4 * time.Second,
		ReadyCeiling:       15 * time.Second,
		PostCapturePause:   800 * time.Millisecond,
		FinalPause:         1200 * time.Millisecond,
		ShotCount:          model.ShotCount,
		MaxCaptureFailures: 3,
	}
}

// Step tells the control loop what to do after a transition.
type Step struct {
	State State
	// Count is the countdown value on display in StateCountdown.
	Count int
	// Wake re-arms the state timer. Zero leaves it untouched.
	Wake time.Duration
	// Cue schedules the one-shot smile cue.
	Cue time.Duration
	// Capture asks the loop to take a frame and report Captured or CaptureFailed.
	Capture bool
	// ReadyTimeout is set when the ceiling elapsed without a live frame.
	ReadyTimeout bool
	Warning      string
	Done         bool
	Err          error
}

// Machine is the capture state machine. It holds no timers and does no I/O;
// callers feed it events with the current time.
type Machine struct {
	timing    Timing
	state     State
	count     int
	startedAt time.Time
	frameSeen bool
	failures  int
	shots     model.ShotSet
}

// NewMachine creates a machine in StateInitializing.
func NewMachine(timing Timing) *Machine {
	if timing.ShotCount <= 0 {
		timing.ShotCount = model.ShotCount
	}
	if timing.CountdownStart <= 0 {
		timing.CountdownStart = model.DefaultCountdownSeconds
	}
	return &Machine{timing: timing, shots: make(model.ShotSet, 0, timing.ShotCount)}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Shots returns the frames captured so far.
func (m *Machine) Shots() model.ShotSet {
	out := make(model.ShotSet, len(m.shots))
	copy(out, m.shots)
	return out
}

// Start begins a session while the camera opens in the background.
func (m *Machine) Start(now time.Time) Step {
	m.state = StateInitializing
	m.startedAt = now
	m.frameSeen = false
	m.failures = 0
	m.shots = m.shots[:0]
	return Step{State: m.state, Wake: m.timing.ReadyCeiling}
}

// SourceReady records that camera probing completed, with or without a device.
func (m *Machine) SourceReady(now time.Time) Step {
	if m.state != StateInitializing {
		return m.current()
	}
	m.state = StateWaitingForCamera
	return m.evaluateReady(now)
}

// FrameArrived records a produced frame. ok is false when the step needs no action.
func (m *Machine) FrameArrived(now time.Time) (Step, bool) {
	first := !m.frameSeen
	m.frameSeen = true
	if !first || m.state != StateWaitingForCamera {
		return Step{}, false
	}
	return m.evaluateReady(now), true
}

// Timer handles expiry of the state timer.
func (m *Machine) Timer(now time.Time) Step {
	switch m.state {
	case StateInitializing, StateWaitingForCamera:
		return m.evaluateReady(now)
	case StateCountdown:
		if m.count > 1 {
			m.count--
			step := Step{State: m.state, Count: m.count, Wake: m.timing.Tick}
			if m.count == 1 {
				step.Cue = m.cueDelay()
			}
			return step
		}
		m.state = StateSmile
		return Step{State: m.state, Wake: m.timing.Tick}
	case StateSmile:
		m.state = StateCapturing
		return Step{State: m.state, Capture: true}
	case StatePostCapture:
		if len(m.shots) >= m.timing.ShotCount {
			m.state = StateFinished
			return Step{State: m.state, Done: true}
		}
		return m.enterCountdown("")
	default:
		return m.current()
	}
}

// Captured appends frame when the machine is waiting for a capture.
func (m *Machine) Captured(frame model.Frame) Step {
	if m.state != StateCapturing {
		return m.current()
	}
	if frame.Empty() {
		return m.CaptureFailed(ErrNoFrameAvailable)
	}
	m.shots = append(m.shots, frame)
	m.failures = 0
	m.state = StatePostCapture
	if len(m.shots) >= m.timing.ShotCount {
		return Step{State: m.state, Wake: m.timing.FinalPause}
	}
	return Step{State: m.state, Wake: m.timing.PostCapturePause}
}

// CaptureFailed records a shutter with no frame. The countdown reruns until
// too many consecutive failures end the session.
func (m *Machine) CaptureFailed(err error) Step {
	if m.state != StateCapturing {
		return m.current()
	}
	if err == nil {
		err = ErrNoFrameAvailable
	}
	m.failures++
	if m.timing.MaxCaptureFailures > 0 && m.failures >= m.timing.MaxCaptureFailures {
		m.state = StateFinished
		return Step{State: m.state, Done: true, Err: err, Warning: err.Error()}
	}
	m.state = StatePostCapture
	return Step{State: m.state, Wake: m.timing.PostCapturePause, Warning: err.Error()}
}

func (m *Machine) evaluateReady(now time.Time) Step {
	elapsed := now.Sub(m.startedAt)
	if m.state == StateWaitingForCamera && m.frameSeen && elapsed >= m.timing.ReadyFloor {
		return m.enterCountdown("")
	}
	if elapsed >= m.timing.ReadyCeiling {
		step := m.enterCountdown("camera not ready, starting anyway")
		step.ReadyTimeout = !m.frameSeen
		return step
	}
	wake := m.timing.ReadyCeiling - elapsed
	if m.state == StateWaitingForCamera && m.frameSeen {
		wake = m.timing.ReadyFloor - elapsed
	}
	return Step{State: m.state, Wake: wake}
}

func (m *Machine) enterCountdown(warning string) Step {
	m.state = StateCountdown
	m.count = m.timing.CountdownStart
	step := Step{State: m.state, Count: m.count, Wake: m.timing.Tick, Warning: warning}
	if m.count == 1 {
		step.Cue = m.cueDelay()
	}
	return step
}

func (m *Machine) cueDelay() time.Duration {
	d := m.timing.Tick - m.timing.CueLead
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}

func (m *Machine) current() Step {
	return Step{State: m.state, Count: m.count, Done: m.state == StateFinished}
}
