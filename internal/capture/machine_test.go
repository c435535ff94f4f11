package capture

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

func testFrame() model.Frame {
	return model.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), CapturedAt: time.Unix(0, 0)}
}

type timeline struct {
	countdownStarts []time.Duration
	smiles          []time.Duration
	captures        []time.Duration
	cues            []time.Duration
	finished        time.Duration
}

// drive runs the machine on a virtual clock, answering every capture request.
func drive(t *testing.T, m *Machine, start time.Time, step Step) timeline {
	t.Helper()
	var tl timeline
	now := start
	record := func(step Step) {
		switch {
		case step.State == StateCountdown && step.Count == m.timing.CountdownStart:
			tl.countdownStarts = append(tl.countdownStarts, now.Sub(start))
		case step.State == StateSmile:
			tl.smiles = append(tl.smiles, now.Sub(start))
		}
		if step.Cue > 0 {
			tl.cues = append(tl.cues, now.Add(step.Cue).Sub(start))
		}
	}
	record(step)
	for i := 0; i < 1000; i++ {
		if step.Done {
			tl.finished = now.Sub(start)
			return tl
		}
		if step.Capture {
			tl.captures = append(tl.captures, now.Sub(start))
			step = m.Captured(testFrame())
			record(step)
			continue
		}
		if step.Wake <= 0 {
			t.Fatalf("machine stalled in %s", step.State)
		}
		now = now.Add(step.Wake)
		step = m.Timer(now)
		record(step)
	}
	t.Fatalf("machine did not finish")
	return tl
}

func TestScenarioThreeSecondCountdown(t *testing.T) {
	timing := DefaultTiming(3)
	m := NewMachine(timing)
	start := time.Unix(100, 0)
	m.Start(start)
	m.SourceReady(start)
	step, ok := m.FrameArrived(start)
	if !ok {
		t.Fatalf("expected the first frame to be acted on")
	}
	if step.State != StateWaitingForCamera || step.Wake != timing.ReadyFloor {
		t.Fatalf("expected to wait for the floor, got %+v", step)
	}

	tl := drive(t, m, start, step)
	if len(m.Shots()) != model.ShotCount {
		t.Fatalf("expected %d shots, got %d", model.ShotCount, len(m.Shots()))
	}
	if len(tl.captures) != model.ShotCount {
		t.Fatalf("expected %d captures, got %d", model.ShotCount, len(tl.captures))
	}
	for i := range tl.captures {
		cycle := tl.countdownStarts[i]
		if got := tl.smiles[i] - cycle; got != 3*time.Second {
			t.Fatalf("cycle %d: expected smile 3s after countdown start, got %s", i, got)
		}
		if got := tl.captures[i] - cycle; got != 4*time.Second {
			t.Fatalf("cycle %d: expected capture one tick after smile, got %s", i, got)
		}
		if got := tl.smiles[i] - tl.cues[i]; got != 500*time.Millisecond {
			t.Fatalf("cycle %d: expected cue 0.5s before smile, got %s", i, got)
		}
	}
	for i := 1; i < len(tl.countdownStarts); i++ {
		if got := tl.countdownStarts[i] - tl.captures[i-1]; got != timing.PostCapturePause {
			t.Fatalf("expected post-capture pause, got %s", got)
		}
	}
	if got := tl.finished - tl.captures[len(tl.captures)-1]; got != timing.FinalPause {
		t.Fatalf("expected final pause, got %s", got)
	}
	total := tl.finished - tl.countdownStarts[0]
	want := 5*(4*time.Second+timing.PostCapturePause) + 4*time.Second + timing.FinalPause
	if total != want {
		t.Fatalf("expected total %s, got %s", want, total)
	}
}

func TestWaitingCeilingProceedsWithWarning(t *testing.T) {
	timing := DefaultTiming(5)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	m.Start(start)
	step := m.SourceReady(start.Add(time.Second))
	if step.State != StateWaitingForCamera || step.Wake != timing.ReadyCeiling-time.Second {
		t.Fatalf("expected wait until ceiling, got %+v", step)
	}
	step = m.Timer(start.Add(timing.ReadyFloor))
	if step.State != StateWaitingForCamera {
		t.Fatalf("floor alone must not start the countdown, got %s", step.State)
	}
	step = m.Timer(start.Add(timing.ReadyCeiling))
	if step.State != StateCountdown || step.Count != 5 {
		t.Fatalf("expected countdown from 5, got %+v", step)
	}
	if step.Warning == "" || !step.ReadyTimeout {
		t.Fatalf("expected timeout warning, got %+v", step)
	}
}

func TestCeilingAppliesWhileInitializing(t *testing.T) {
	timing := DefaultTiming(5)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	step := m.Start(start)
	if step.Wake != timing.ReadyCeiling {
		t.Fatalf("expected ceiling wake, got %s", step.Wake)
	}
	step = m.Timer(start.Add(timing.ReadyCeiling))
	if step.State != StateCountdown || !step.ReadyTimeout {
		t.Fatalf("expected countdown after ceiling, got %+v", step)
	}
	if next := m.SourceReady(start.Add(timing.ReadyCeiling)); next.State != StateCountdown {
		t.Fatalf("late source must not reset the countdown, got %s", next.State)
	}
}

func TestFrameBeforeFloorWaitsForFloor(t *testing.T) {
	timing := DefaultTiming(5)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	m.Start(start)
	m.SourceReady(start)
	step, _ := m.FrameArrived(start.Add(time.Second))
	if step.Wake != timing.ReadyFloor-time.Second {
		t.Fatalf("expected wake at floor, got %s", step.Wake)
	}
	if _, ok := m.FrameArrived(start.Add(2 * time.Second)); ok {
		t.Fatalf("expected later frames to be ignored")
	}
	step = m.Timer(start.Add(timing.ReadyFloor))
	if step.State != StateCountdown || step.Warning != "" {
		t.Fatalf("expected clean countdown, got %+v", step)
	}
}

func TestCapturedOnlyAppendsWhileCapturing(t *testing.T) {
	m := NewMachine(DefaultTiming(1))
	start := time.Unix(0, 0)
	m.Start(start)
	m.Timer(start.Add(15 * time.Second))
	if m.State() != StateCountdown {
		t.Fatalf("expected countdown, got %s", m.State())
	}
	m.Captured(testFrame())
	if len(m.Shots()) != 0 {
		t.Fatalf("expected no append outside capturing")
	}
	m.Timer(start)
	step := m.Timer(start)
	if !step.Capture {
		t.Fatalf("expected capture request, got %+v", step)
	}
	m.Captured(testFrame())
	m.Captured(testFrame())
	if len(m.Shots()) != 1 {
		t.Fatalf("expected exactly one append per cycle, got %d", len(m.Shots()))
	}
}

func TestCountdownOfOneSchedulesCue(t *testing.T) {
	m := NewMachine(DefaultTiming(1))
	start := time.Unix(0, 0)
	m.Start(start)
	step := m.Timer(start.Add(15 * time.Second))
	if step.Count != 1 || step.Cue != 500*time.Millisecond {
		t.Fatalf("expected cue on entry, got %+v", step)
	}
}

func TestCaptureFailureRerunsCountdown(t *testing.T) {
	timing := DefaultTiming(1)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	m.Start(start)
	m.Timer(start.Add(timing.ReadyCeiling))
	m.Timer(start)
	m.Timer(start)
	step := m.CaptureFailed(ErrNoFrameAvailable)
	if step.State != StatePostCapture || step.Warning == "" || step.Done {
		t.Fatalf("expected recoverable failure, got %+v", step)
	}
	if len(m.Shots()) != 0 {
		t.Fatalf("expected no append on failure")
	}
	step = m.Timer(start)
	if step.State != StateCountdown || step.Count != 1 {
		t.Fatalf("expected countdown rerun, got %+v", step)
	}
}

func TestRepeatedCaptureFailureEndsSession(t *testing.T) {
	timing := DefaultTiming(1)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	m.Start(start)
	m.Timer(start.Add(timing.ReadyCeiling))
	var step Step
	for i := 0; i < timing.MaxCaptureFailures; i++ {
		m.Timer(start)
		if s := m.Timer(start); !s.Capture {
			t.Fatalf("attempt %d: expected capture request, got %+v", i, s)
		}
		step = m.CaptureFailed(nil)
		if i < timing.MaxCaptureFailures-1 {
			m.Timer(start)
		}
	}
	if !step.Done || !errors.Is(step.Err, ErrNoFrameAvailable) {
		t.Fatalf("expected session to end with ErrNoFrameAvailable, got %+v", step)
	}
	if m.State() != StateFinished {
		t.Fatalf("expected finished, got %s", m.State())
	}
}

func TestEmptyFrameCountsAsFailure(t *testing.T) {
	timing := DefaultTiming(1)
	m := NewMachine(timing)
	start := time.Unix(0, 0)
	m.Start(start)
	m.Timer(start.Add(timing.ReadyCeiling))
	m.Timer(start)
	m.Timer(start)
	step := m.Captured(model.Frame{})
	if step.Warning == "" || len(m.Shots()) != 0 {
		t.Fatalf("expected empty frame to be rejected, got %+v", step)
	}
}

func TestMailboxKeepsLatest(t *testing.T) {
	box := NewMailbox()
	first := testFrame()
	second := testFrame()
	second.CapturedAt = time.Unix(5, 0)
	box.Publish(first)
	box.Publish(second)
	select {
	case <-box.Notify():
	default:
		t.Fatalf("expected notification")
	}
	got, ok := box.Take()
	if !ok || !got.CapturedAt.Equal(second.CapturedAt) {
		t.Fatalf("expected latest frame, got %+v", got)
	}
	if _, ok := box.Take(); ok {
		t.Fatalf("expected empty mailbox")
	}
	if box.Drops() != 1 {
		t.Fatalf("expected one drop, got %d", box.Drops())
	}
}
