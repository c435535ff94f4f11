package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/verte-zerg/tuibooth/internal/capture"
)

func receive(t *testing.T, ch <-chan string) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var evt Event
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestSubscribersReceiveEvents(t *testing.T) {
	b := NewBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Screen("welcome")

	for _, ch := range []<-chan string{ch1, ch2} {
		evt := receive(t, ch)
		if evt.Kind != KindScreen || evt.Screen != "welcome" || evt.Time == "" {
			t.Fatalf("unexpected event %+v", evt)
		}
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if b.Clients() != 0 {
		t.Fatalf("expected no clients")
	}
	b.Warn("after unsubscribe")
}

func TestFullClientDropsMessages(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()
	for i := 0; i < clientBuffer+5; i++ {
		b.Warn("fill")
	}
	if len(ch) != clientBuffer {
		t.Fatalf("expected %d buffered messages, got %d", clientBuffer, len(ch))
	}
}

func TestStatusSnapshot(t *testing.T) {
	b := NewBroadcaster()
	b.Screen("capture")
	b.Capture(capture.Event{Kind: capture.EventState, State: capture.StateCountdown, Count: 3, Shots: 2})
	b.Capture(capture.Event{Kind: capture.EventWarning, State: capture.StateWaitingForCamera, Message: "camera not found"})
	b.Remaining(4)

	st := b.Status()
	if st.Screen != "capture" || st.Shots != 2 || st.LastWarning != "camera not found" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Remaining == nil || *st.Remaining != 4 {
		t.Fatalf("unexpected remaining %v", st.Remaining)
	}

	b.Screen("select")
	st = b.Status()
	if st.Screen != "select" || st.Shots != 0 || st.State != "" {
		t.Fatalf("expected capture fields reset on screen change, got %+v", st)
	}
}

func TestSessionOutcomeIsPublished(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Session("print_failed")
	evt := receive(t, ch)
	if evt.Kind != KindSession || evt.Level != "warn" || evt.Msg != "print_failed" {
		t.Fatalf("unexpected event %+v", evt)
	}
	b.Session("completed")
	if evt := receive(t, ch); evt.Level != "info" {
		t.Fatalf("expected info level for completed, got %+v", evt)
	}
	if st := b.Status(); st.LastSession != "completed" {
		t.Fatalf("expected last session completed, got %q", st.LastSession)
	}
}

func TestPreviewEventsAreNotForwarded(t *testing.T) {
	if _, ok := FromCapture(capture.Event{Kind: capture.EventPreview}); ok {
		t.Fatalf("expected preview to be dropped")
	}
	if _, ok := FromCapture(capture.Event{Kind: capture.EventCue}); ok {
		t.Fatalf("expected cue to be dropped")
	}
	evt, ok := FromCapture(capture.Event{Kind: capture.EventFinished, State: capture.StateFinished, Shots: 6})
	if !ok || evt.Shots != 6 {
		t.Fatalf("unexpected finished event %+v", evt)
	}
}
