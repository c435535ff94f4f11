package tui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuibooth/internal/booth"
	"github.com/verte-zerg/tuibooth/internal/capture"
	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/events"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/template"
)

type fakeActivator struct {
	mu    sync.Mutex
	dev   cloud.Device
	err   error
	calls int
}

func (f *fakeActivator) Activate(_ context.Context, progress func(cloud.Progress)) (cloud.Device, error) {
	f.mu.Lock()
	f.calls++
	dev, err := f.dev, f.err
	f.mu.Unlock()
	progress(cloud.Progress{Phase: cloud.PhaseRegistering, Attempt: 1})
	return dev, err
}

type fakePipeline struct {
	frames    int
	option    model.PrintOption
	outcomes  []string
	uploadErr error
	printErr  error
	remaining int
}

func (f *fakePipeline) Compose(_ context.Context, sess *booth.Session, frames []model.Frame) error {
	f.frames = len(frames)
	sess.Plain = image.NewRGBA(image.Rect(0, 0, 8, 8))
	sess.Styled = image.NewRGBA(image.Rect(0, 0, 8, 8))
	return nil
}

func (f *fakePipeline) Publish(_ context.Context, sess *booth.Session) error {
	if f.uploadErr == nil {
		sess.Link = "https://example.test/s/1"
	}
	return f.uploadErr
}

func (f *fakePipeline) Print(_ context.Context, _ *booth.Session, option model.PrintOption) ([]model.PrintRecord, error) {
	f.option = option
	if f.printErr != nil {
		return nil, f.printErr
	}
	return []model.PrintRecord{{Description: "strip", Copies: 1}}, nil
}

func (f *fakePipeline) Finish(context.Context, *booth.Session) (int, error) {
	return f.remaining, nil
}

func (f *fakePipeline) Record(_ context.Context, _ *booth.Session, outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

type memSettings struct {
	s     model.Settings
	saves int
}

func (m *memSettings) Get() model.Settings { return m.s }

func (m *memSettings) Update(fn func(*model.Settings)) (model.Settings, error) {
	fn(&m.s)
	m.saves++
	return m.s, nil
}

type countingRecorder struct {
	shots     int
	warnings  int
	outcomes  []string
	remaining int
}

func (c *countingRecorder) ShotCaptured()   { c.shots++ }
func (c *countingRecorder) CaptureWarning() { c.warnings++ }

func (c *countingRecorder) SessionFinished(outcome string) {
	c.outcomes = append(c.outcomes, outcome)
}

func (c *countingRecorder) SetRemaining(n int) { c.remaining = n }

func testShots(n int) model.ShotSet {
	shots := make(model.ShotSet, n)
	for i := range shots {
		shots[i] = model.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 12))}
	}
	return shots
}

func fakeCapture(n int, err error) CaptureFunc {
	return func(_ context.Context, observe capture.Observer) (model.ShotSet, error) {
		observe(capture.Event{Kind: capture.EventState, State: capture.StateCountdown, Count: 3})
		observe(capture.Event{Kind: capture.EventWarning, Message: "camera not found, switched to simulation"})
		for i := 0; i < n; i++ {
			observe(capture.Event{Kind: capture.EventCaptured, State: capture.StatePostCapture, Shots: i + 1})
		}
		if err != nil {
			return nil, err
		}
		return testShots(n), nil
	}
}

type harness struct {
	m        *Model
	act      *fakeActivator
	pipe     *fakePipeline
	settings *memSettings
	rec      *countingRecorder
	status   *events.Broadcaster
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		act:      &fakeActivator{dev: cloud.Device{Activated: true, RemainingSessions: 3}},
		pipe:     &fakePipeline{remaining: 2},
		settings: &memSettings{s: model.DefaultSettings()},
		rec:      &countingRecorder{},
		status:   events.NewBroadcaster(),
	}
	h.m = NewModel(context.Background(), Deps{
		Settings:  h.settings,
		MachineID: "0123456789ABCDEF0123456789ABCDEF",
		Activator: h.act,
		Templates: func() ([]template.Template, error) {
			return []template.Template{{Name: "Wedding"}, {Name: "Birthday"}}, nil
		},
		Capture:  fakeCapture(model.ShotCount, nil),
		Pipeline: h.pipe,
		Status:   h.status,
		Recorder: h.rec,
	})
	h.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

// run feeds the results of cmd back into the model until no follow-up is returned.
func (h *harness) run(cmd tea.Cmd) {
	for i := 0; cmd != nil && i < 100; i++ {
		_, cmd = h.m.Update(cmd())
	}
}

func (h *harness) key(s string) tea.Cmd {
	var msg tea.KeyMsg
	switch s {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	_, cmd := h.m.Update(msg)
	return cmd
}

func (h *harness) toWelcome(t *testing.T) {
	t.Helper()
	h.run(h.m.enterLocked(""))
	if h.m.screen != screenWelcome {
		t.Fatalf("expected welcome screen, got %s", h.m.screen)
	}
}

// toCapture picks the first template and runs the timer out.
func (h *harness) toCapture(t *testing.T) tea.Cmd {
	t.Helper()
	h.toWelcome(t)
	h.key("enter")
	if h.m.screen != screenTemplates {
		t.Fatalf("expected templates screen, got %s", h.m.screen)
	}
	h.key("1")
	_, cmd := h.m.Update(templateTickMsg{gen: h.m.gen, at: h.m.deadline})
	if h.m.screen != screenCapture {
		t.Fatalf("expected capture screen, got %s", h.m.screen)
	}
	return cmd
}

func TestActivationLeadsToWelcome(t *testing.T) {
	h := newHarness(t)
	h.toWelcome(t)
	if h.m.remaining != 3 || h.rec.remaining != 3 {
		t.Fatalf("expected 3 remaining, got %d", h.m.remaining)
	}
	if got := h.status.Status().Screen; got != "welcome" {
		t.Fatalf("expected status screen welcome, got %q", got)
	}
}

func TestNoRemainingSessionsStaysLocked(t *testing.T) {
	h := newHarness(t)
	h.act.dev.RemainingSessions = 0
	h.run(h.m.enterLocked(""))
	if h.m.screen != screenLocked || h.m.lockReason != "No sessions remaining." {
		t.Fatalf("expected locked with reason, got %s %q", h.m.screen, h.m.lockReason)
	}
	if h.m.activating {
		t.Fatalf("expected activation finished")
	}
}

func TestActivationFailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	h.act.err = cloud.ErrRetriesExhausted
	h.run(h.m.enterLocked(""))
	if h.m.screen != screenLocked || h.m.activating {
		t.Fatalf("expected idle lock screen")
	}
	if !strings.Contains(h.m.View(), "0123-4567-89AB-CDEF") {
		t.Fatalf("expected formatted machine id in view:\n%s", h.m.View())
	}

	h.act.err = nil
	h.run(h.key("r"))
	if h.m.screen != screenWelcome {
		t.Fatalf("expected welcome after retry, got %s", h.m.screen)
	}
	if h.act.calls != 2 {
		t.Fatalf("expected 2 activation calls, got %d", h.act.calls)
	}
}

func TestHiddenSettingsKeySavesChanges(t *testing.T) {
	h := newHarness(t)
	h.toWelcome(t)
	h.key("S")
	if h.m.screen != screenSettings {
		t.Fatalf("expected settings screen, got %s", h.m.screen)
	}
	h.key("enter")
	if h.settings.s.CameraSimulation {
		t.Fatalf("expected camera simulation toggled off")
	}
	h.m.Update(tea.KeyMsg{Type: tea.KeyDown})
	h.m.Update(tea.KeyMsg{Type: tea.KeyDown})
	h.m.Update(tea.KeyMsg{Type: tea.KeyDown})
	h.m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if h.settings.s.CountdownSeconds != model.DefaultCountdownSeconds+1 {
		t.Fatalf("expected countdown incremented, got %d", h.settings.s.CountdownSeconds)
	}
	if h.settings.saves != 2 {
		t.Fatalf("expected 2 saves, got %d", h.settings.saves)
	}
	h.key("esc")
	if h.m.screen != screenWelcome {
		t.Fatalf("expected welcome, got %s", h.m.screen)
	}
}

func TestCountdownSettingIsClamped(t *testing.T) {
	s := model.DefaultSettings()
	item := settingItems()[3]
	for i := 0; i < 20; i++ {
		item.change(&s, -1)
	}
	if s.CountdownSeconds != minCountdown {
		t.Fatalf("expected %d, got %d", minCountdown, s.CountdownSeconds)
	}
}

func TestTemplateTimerWaitsForChoice(t *testing.T) {
	h := newHarness(t)
	h.toWelcome(t)
	h.key("enter")
	_, cmd := h.m.Update(templateTickMsg{gen: h.m.gen, at: h.m.deadline})
	if cmd != nil || h.m.screen != screenTemplates || !h.m.timerDone {
		t.Fatalf("expected picker to wait for a choice")
	}
	h.key("2")
	if h.m.screen != screenCapture || h.m.chosen != 1 {
		t.Fatalf("expected capture with second template, got %s %d", h.m.screen, h.m.chosen)
	}
}

func TestTemplateTickBeforeDeadlineKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	h.toWelcome(t)
	h.key("enter")
	h.key("1")
	_, cmd := h.m.Update(templateTickMsg{gen: h.m.gen, at: h.m.deadline.Add(-3 * time.Second)})
	if cmd == nil || h.m.screen != screenTemplates {
		t.Fatalf("expected another tick before the deadline")
	}
}

func TestNoTemplatesShowsNotice(t *testing.T) {
	h := newHarness(t)
	h.m.deps.Templates = func() ([]template.Template, error) { return nil, errors.New("missing dir") }
	h.toWelcome(t)
	h.key("enter")
	if h.m.screen != screenWelcome || h.m.notice == "" {
		t.Fatalf("expected notice on welcome")
	}
}

func TestFullGuestFlow(t *testing.T) {
	h := newHarness(t)
	h.run(h.toCapture(t))
	if h.m.screen != screenSelect {
		t.Fatalf("expected select screen, got %s", h.m.screen)
	}
	if h.rec.shots != model.ShotCount || h.rec.warnings != 1 {
		t.Fatalf("unexpected capture metrics shots=%d warnings=%d", h.rec.shots, h.rec.warnings)
	}

	h.key("enter")
	if h.m.screen != screenSelect || h.m.notice == "" {
		t.Fatalf("expected notice before four picks")
	}
	for _, k := range []string{"1", "3", "4", "6"} {
		h.key(k)
	}
	h.key("5")
	if h.m.notice == "" {
		t.Fatalf("expected full selection notice")
	}
	h.key("6")
	h.key("5")
	if !h.m.pick.Ready() {
		t.Fatalf("expected selection ready")
	}
	if view := h.m.View(); !strings.Contains(view, "slot 4") {
		t.Fatalf("expected slot labels in view:\n%s", view)
	}

	h.run(h.key("enter"))
	if h.m.screen != screenPrint {
		t.Fatalf("expected print screen, got %s", h.m.screen)
	}
	if h.pipe.frames != 4 {
		t.Fatalf("expected 4 frames composed, got %d", h.pipe.frames)
	}
	if !strings.Contains(h.m.View(), "https://example.test/s/1") {
		t.Fatalf("expected share link in view")
	}

	h.run(h.key("2"))
	if h.pipe.option != model.PrintMixed {
		t.Fatalf("expected mixed option, got %v", h.pipe.option)
	}
	if h.m.screen != screenWelcome || h.m.remaining != 2 {
		t.Fatalf("expected welcome with 2 remaining, got %s %d", h.m.screen, h.m.remaining)
	}
	if got := h.status.Status().LastSession; got != "completed" {
		t.Fatalf("expected completed published, got %q", got)
	}
}

func TestUploadFailureStillOffersPrinting(t *testing.T) {
	h := newHarness(t)
	h.pipe.uploadErr = errors.New("timeout")
	h.run(h.toCapture(t))
	for _, k := range []string{"1", "2", "3", "4"} {
		h.key(k)
	}
	h.run(h.key("enter"))
	if h.m.screen != screenPrint || h.m.notice == "" {
		t.Fatalf("expected print screen with notice, got %s", h.m.screen)
	}
}

func TestLastSessionLocksKiosk(t *testing.T) {
	h := newHarness(t)
	h.pipe.remaining = 0
	h.run(h.toCapture(t))
	for _, k := range []string{"1", "2", "3", "4"} {
		h.key(k)
	}
	h.run(h.key("enter"))
	h.act.dev.RemainingSessions = 0
	h.run(h.key("1"))
	if h.m.screen != screenLocked {
		t.Fatalf("expected locked screen, got %s", h.m.screen)
	}
}

func TestPrintFailureRecordsOutcome(t *testing.T) {
	h := newHarness(t)
	h.pipe.printErr = errors.New("printer offline")
	h.run(h.toCapture(t))
	for _, k := range []string{"1", "2", "3", "4"} {
		h.key(k)
	}
	h.run(h.key("enter"))
	h.run(h.key("3"))
	if h.m.screen != screenWelcome || len(h.pipe.outcomes) != 1 || h.pipe.outcomes[0] != "print_failed" {
		t.Fatalf("expected print_failed outcome, got %s %v", h.m.screen, h.pipe.outcomes)
	}
}

func TestCaptureFailureReturnsToWelcome(t *testing.T) {
	h := newHarness(t)
	h.m.deps.Capture = fakeCapture(2, capture.ErrNoFrameAvailable)
	h.run(h.toCapture(t))
	if h.m.screen != screenWelcome || h.m.notice == "" {
		t.Fatalf("expected welcome with notice, got %s", h.m.screen)
	}
	if len(h.rec.outcomes) != 1 || h.rec.outcomes[0] != "capture_failed" {
		t.Fatalf("unexpected outcomes %v", h.rec.outcomes)
	}
	if got := h.status.Status().LastSession; got != "capture_failed" {
		t.Fatalf("expected capture_failed published, got %q", got)
	}
}

func TestStaleResultsAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.toWelcome(t)
	stale := h.m.gen - 1
	h.m.Update(captureDoneMsg{gen: stale, shots: testShots(6)})
	if h.m.screen != screenWelcome {
		t.Fatalf("expected stale capture result to be dropped")
	}
}

func TestSmileCueFlashesAndRingsBell(t *testing.T) {
	h := newHarness(t)
	var bell bytes.Buffer
	h.m.deps.Bell = &bell
	h.toCapture(t)
	h.m.Update(captureEventMsg{gen: h.m.gen, event: capture.Event{Kind: capture.EventState, State: capture.StateCountdown, Count: 1}})
	before := h.m.View()

	_, cmd := h.m.Update(captureEventMsg{gen: h.m.gen, event: capture.Event{Kind: capture.EventCue, State: capture.StateCountdown}})
	after := h.m.View()
	if after == before || !strings.Contains(after, "Get ready!") {
		t.Fatalf("expected get ready flash after cue:\n%s", after)
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok || len(batch) != 2 {
		t.Fatalf("expected bell and listen commands, got %T", msg)
	}
	batch[0]()
	if bell.String() != "\a" {
		t.Fatalf("expected terminal bell, got %q", bell.String())
	}

	h.m.Update(captureEventMsg{gen: h.m.gen, event: capture.Event{Kind: capture.EventState, State: capture.StateSmile}})
	if view := h.m.View(); strings.Contains(view, "Get ready!") || !strings.Contains(view, "SMILE!") {
		t.Fatalf("expected flash cleared on smile:\n%s", view)
	}
}

func TestWaitBlocksUntilCaptureReturns(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.m.ctx = ctx
	var released atomic.Bool
	h.m.deps.Capture = func(ctx context.Context, _ capture.Observer) (model.ShotSet, error) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		released.Store(true)
		return nil, ctx.Err()
	}
	h.toCapture(t)

	cancel()
	h.m.Wait()
	if !released.Load() {
		t.Fatalf("expected capture to return before Wait")
	}

	if msg := h.m.startPrint(model.PrintMixed)(); msg != nil {
		t.Fatalf("expected no pipeline work after Wait, got %T", msg)
	}
	if h.pipe.option != 0 {
		t.Fatalf("expected print not to run, got %v", h.pipe.option)
	}
}

func TestFitCellsKeepsAspect(t *testing.T) {
	cols, rows := fitCells(image.Rect(0, 0, 640, 480), 80, 20)
	if cols != 53 || rows != 20 {
		t.Fatalf("expected 53x20, got %dx%d", cols, rows)
	}
	cols, rows = fitCells(image.Rect(0, 0, 1600, 400), 40, 20)
	if cols != 40 || rows != 5 {
		t.Fatalf("expected 40x5, got %dx%d", cols, rows)
	}
}

func TestRenderHalfBlocksSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	out := renderHalfBlocks(img, 4, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if w := lipgloss.Width(line); w != 4 {
			t.Fatalf("expected width 4, got %d", w)
		}
	}
	if renderHalfBlocks(nil, 4, 2) != "" {
		t.Fatalf("expected empty output for nil image")
	}
}
