package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verte-zerg/tuibooth/internal/camera"
	"github.com/verte-zerg/tuibooth/internal/model"
)

// Runner defaults.
const (
	DefaultPreviewInterval = 66 * time.Millisecond
	DefaultSyncReadTimeout = 500 * time.Millisecond
)

// Config configures a Runner.
type Config struct {
	Timing Timing
	// Simulation selects the webcam with demo fallback; otherwise the DSLR scan is used.
	Simulation      bool
	WebcamIndex     int
	Mirror          bool
	PreviewInterval time.Duration
	DemoInterval    time.Duration
	SyncReadTimeout time.Duration
}

// DefaultConfig builds a runner config from kiosk settings.
func DefaultConfig(settings model.Settings) Config {
	return Config{
		Timing:          DefaultTiming(settings.CountdownSeconds),
		Simulation:      settings.CameraSimulation,
		WebcamIndex:     settings.WebcamIndex,
		Mirror:          settings.InvertCamera,
		PreviewInterval: DefaultPreviewInterval,
		DemoInterval:    camera.DemoInterval,
		SyncReadTimeout: DefaultSyncReadTimeout,
	}
}

// Runner owns the camera for one session and drives the Machine from timers.
type Runner struct {
	cfg     Config
	driver  camera.Driver
	demo    *camera.DemoFeeder
	observe Observer
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a runner. demo may be nil, in which case generated frames are used.
func NewRunner(cfg Config, driver camera.Driver, demo *camera.DemoFeeder, observe Observer, logger *slog.Logger) *Runner {
	if cfg.PreviewInterval <= 0 {
		cfg.PreviewInterval = DefaultPreviewInterval
	}
	if cfg.DemoInterval <= 0 {
		cfg.DemoInterval = camera.DemoInterval
	}
	if cfg.SyncReadTimeout <= 0 {
		cfg.SyncReadTimeout = DefaultSyncReadTimeout
	}
	if demo == nil {
		demo = camera.NewDemoFeederFrames(nil)
	}
	if observe == nil {
		observe = func(Event) {}
	}
	return &Runner{cfg: cfg, driver: driver, demo: demo, observe: observe, logger: logger, now: time.Now}
}

type openResult struct {
	dev    camera.Device
	forced bool
	err    error
}

type session struct {
	r          *Runner
	simulation bool
	source     *camera.Source
	mailbox    *Mailbox
	stopView   context.CancelFunc
	viewDone   chan struct{}
	demoTicker *time.Ticker
	lastFrame  model.Frame
}

// Run executes one capture session and returns the shot set.
// The camera is released and all timers stopped on every return path.
func (r *Runner) Run(ctx context.Context) (model.ShotSet, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{r: r, simulation: r.cfg.Simulation, mailbox: NewMailbox()}
	defer s.teardown()

	machine := NewMachine(r.cfg.Timing)
	stateTimer := newStoppedTimer()
	defer stateTimer.Stop()
	cueTimer := newStoppedTimer()
	defer cueTimer.Stop()

	openCh := make(chan openResult, 1)
	go func() {
		dev, forced, err := r.open(ctx)
		openCh <- openResult{dev: dev, forced: forced, err: err}
	}()
	defer func() {
		if openCh != nil {
			go closeLate(openCh)
		}
	}()

	step := machine.Start(r.now())
	for {
		for step.Capture {
			frame, err := s.pick(ctx)
			if err != nil {
				r.logger.Warn("capture failed", "shot", len(machine.shots)+1, "error", err)
				step = machine.CaptureFailed(err)
				continue
			}
			step = machine.Captured(frame)
			r.observe(Event{Kind: EventCaptured, State: step.State, Shots: len(machine.shots), Frame: frame, At: r.now()})
		}
		r.apply(step, machine, stateTimer, cueTimer)
		if step.ReadyTimeout && s.simulation {
			s.startDemo("camera never produced a frame")
		}
		if step.Done {
			shots := machine.Shots()
			r.observe(Event{Kind: EventFinished, State: step.State, Shots: len(shots), At: r.now()})
			return shots, step.Err
		}

		select {
		case <-ctx.Done():
			return machine.Shots(), ctx.Err()
		case res := <-openCh:
			openCh = nil
			s.attach(ctx, res)
			step = machine.SourceReady(r.now())
			if s.demoTicker != nil {
				if next, ok := machine.FrameArrived(r.now()); ok {
					step = next
				}
			}
		case <-s.mailbox.Notify():
			frame, ok := s.mailbox.Take()
			if !ok || s.source == nil {
				step = Step{State: machine.State()}
				continue
			}
			s.lastFrame = frame
			r.observe(Event{Kind: EventPreview, State: machine.State(), Frame: frame, At: r.now()})
			step = Step{State: machine.State()}
			if next, ok := machine.FrameArrived(r.now()); ok {
				step = next
			}
		case <-s.demoTick():
			frame := r.demo.Next()
			r.observe(Event{Kind: EventPreview, State: machine.State(), Frame: frame, Demo: true, At: r.now()})
			step = Step{State: machine.State()}
			if next, ok := machine.FrameArrived(r.now()); ok {
				step = next
			}
		case <-stateTimer.C:
			step = machine.Timer(r.now())
		case <-cueTimer.C:
			r.observe(Event{Kind: EventCue, State: machine.State(), At: r.now()})
			step = Step{State: machine.State()}
		}
	}
}

func (r *Runner) apply(step Step, machine *Machine, stateTimer, cueTimer *time.Timer) {
	if step.Wake > 0 {
		stateTimer.Reset(step.Wake)
	}
	if step.Cue > 0 {
		cueTimer.Reset(step.Cue)
	}
	if step.Warning != "" {
		r.logger.Warn("capture warning", "state", step.State.String(), "warning", step.Warning)
		r.observe(Event{Kind: EventWarning, State: step.State, Message: step.Warning, At: r.now()})
	}
	if step.Wake > 0 || step.Done {
		r.observe(Event{Kind: EventState, State: step.State, Count: step.Count, Shots: len(machine.shots), At: r.now()})
	}
}

// open probes the configured device class. A failed DSLR scan falls back to the webcam.
func (r *Runner) open(ctx context.Context) (camera.Device, bool, error) {
	mode := camera.ModeDSLR
	if r.cfg.Simulation {
		mode = camera.ModeWebcam
	}
	dev, err := camera.Open(ctx, r.driver, mode, r.cfg.WebcamIndex, r.logger)
	if err == nil || mode == camera.ModeWebcam {
		return dev, false, err
	}
	r.logger.Warn("dslr unavailable, forcing simulation", "error", err)
	dev, werr := camera.Open(ctx, r.driver, camera.ModeWebcam, r.cfg.WebcamIndex, r.logger)
	if werr != nil {
		return nil, true, errors.Join(err, werr)
	}
	return dev, true, nil
}

func (s *session) attach(ctx context.Context, res openResult) {
	if res.forced && !s.simulation {
		s.simulation = true
		s.r.observe(Event{Kind: EventWarning, Message: "camera not found, switched to simulation", At: s.r.now()})
	}
	if res.err != nil {
		s.r.logger.Warn("camera unavailable", "error", res.err)
		if ctx.Err() == nil {
			s.simulation = true
			s.startDemo("camera unavailable")
		}
		return
	}
	if s.demoTicker != nil {
		_ = res.dev.Close()
		return
	}
	s.source = camera.NewSource(res.dev, s.r.cfg.Mirror)
	viewCtx, stop := context.WithCancel(ctx)
	s.stopView = stop
	s.viewDone = make(chan struct{})
	go s.r.preview(viewCtx, s.source, s.mailbox, s.viewDone)
}

func (s *session) startDemo(reason string) {
	if s.demoTicker != nil {
		return
	}
	s.r.logger.Info("switching to demo frames", "reason", reason, "frames", s.r.demo.Len())
	s.stopPreview()
	if s.source != nil {
		if err := s.source.Release(); err != nil {
			s.r.logger.Warn("camera release failed", "error", err)
		}
		s.source = nil
	}
	s.lastFrame = model.Frame{}
	s.demoTicker = time.NewTicker(s.r.cfg.DemoInterval)
	frame := s.r.demo.Next()
	s.r.observe(Event{Kind: EventPreview, Frame: frame, Demo: true, At: s.r.now()})
}

func (s *session) demoTick() <-chan time.Time {
	if s.demoTicker == nil {
		return nil
	}
	return s.demoTicker.C
}

// pick applies the shutter precedence: live frame, demo frame, synchronous read.
func (s *session) pick(ctx context.Context) (model.Frame, error) {
	if !s.lastFrame.Empty() {
		return s.lastFrame, nil
	}
	if s.simulation && s.demoTicker != nil {
		if frame, ok := s.r.demo.Last(); ok {
			return frame, nil
		}
	}
	if s.source != nil && s.source.Open() {
		readCtx, cancel := context.WithTimeout(ctx, s.r.cfg.SyncReadTimeout)
		defer cancel()
		frame, err := s.source.Read(readCtx)
		if err == nil {
			s.lastFrame = frame
			return frame, nil
		}
		return model.Frame{}, fmt.Errorf("%w: %v", ErrNoFrameAvailable, err)
	}
	return model.Frame{}, ErrNoFrameAvailable
}

func (s *session) stopPreview() {
	if s.stopView == nil {
		return
	}
	s.stopView()
	<-s.viewDone
	s.stopView = nil
}

func (s *session) teardown() {
	s.stopPreview()
	if s.demoTicker != nil {
		s.demoTicker.Stop()
	}
	if err := s.source.Release(); err != nil {
		s.r.logger.Warn("camera release failed", "error", err)
	}
	s.r.logger.Debug("capture session closed", "preview_drops", s.mailbox.Drops())
}

func (r *Runner) preview(ctx context.Context, src *camera.Source, box *Mailbox, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.PreviewInterval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		frame, err := src.Read(ctx)
		if err != nil {
			failures++
			if failures == 1 || failures%100 == 0 {
				r.logger.Debug("preview read failed", "failures", failures, "error", err)
			}
			continue
		}
		box.Publish(frame)
	}
}

// closeLate releases a device whose probe finished after the session ended.
func closeLate(ch <-chan openResult) {
	res := <-ch
	if res.dev != nil {
		_ = res.dev.Close()
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}
