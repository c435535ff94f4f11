// Package tui provides the Bubble Tea kiosk interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuibooth/internal/booth"
	"github.com/verte-zerg/tuibooth/internal/capture"
	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/events"
	"github.com/verte-zerg/tuibooth/internal/logging"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/selection"
	"github.com/verte-zerg/tuibooth/internal/template"
)

// TemplateTimeout is how long the template picker waits before advancing.
const TemplateTimeout = 7 * time.Second

type screen int

const (
	screenLocked screen = iota
	screenWelcome
	screenSettings
	screenTemplates
	screenCapture
	screenSelect
	screenProcessing
	screenPrint
	screenPrinting
)

func (s screen) String() string {
	switch s {
	case screenLocked:
		return "locked"
	case screenWelcome:
		return "welcome"
	case screenSettings:
		return "settings"
	case screenTemplates:
		return "templates"
	case screenCapture:
		return "capture"
	case screenSelect:
		return "select"
	case screenProcessing:
		return "processing"
	case screenPrint:
		return "print"
	case screenPrinting:
		return "printing"
	default:
		return "unknown"
	}
}

// Activator registers the device and waits for activation.
type Activator interface {
	Activate(ctx context.Context, progress func(cloud.Progress)) (cloud.Device, error)
}

// Pipeline runs the post-capture steps of a session.
type Pipeline interface {
	Compose(ctx context.Context, sess *booth.Session, frames []model.Frame) error
	Publish(ctx context.Context, sess *booth.Session) error
	Print(ctx context.Context, sess *booth.Session, option model.PrintOption) ([]model.PrintRecord, error)
	Finish(ctx context.Context, sess *booth.Session) (int, error)
	Record(ctx context.Context, sess *booth.Session, outcome string)
}

// CaptureFunc runs one capture session with the current settings.
type CaptureFunc func(ctx context.Context, observe capture.Observer) (model.ShotSet, error)

// SettingsStore reads and persists kiosk settings.
type SettingsStore interface {
	Get() model.Settings
	Update(fn func(*model.Settings)) (model.Settings, error)
}

// Recorder receives capture metrics.
type Recorder interface {
	ShotCaptured()
	CaptureWarning()
	SessionFinished(outcome string)
	SetRemaining(n int)
}

// Deps wires the kiosk to its services. Status, Recorder and Bell may be nil.
type Deps struct {
	Settings  SettingsStore
	MachineID string
	Activator Activator
	Templates func() ([]template.Template, error)
	Capture   CaptureFunc
	Pipeline  Pipeline
	Status    *events.Broadcaster
	Recorder  Recorder
	Logger    *slog.Logger
	// Bell receives the terminal bell for the smile cue.
	Bell io.Writer
}

// Model implements the Bubble Tea kiosk UI.
type Model struct {
	deps   Deps
	ctx    context.Context
	keys   keyMap
	help   help.Model
	spin   spinner.Model
	screen screen
	tasks  *tasks

	width  int
	height int

	// gen invalidates async results and ticks from a previous screen.
	gen int

	notice    string
	remaining int

	activation cloud.Progress
	activating bool
	lockReason string

	settingIndex int

	templates     []template.Template
	templateIndex int
	chosen        int
	deadline      time.Time
	timerDone     bool
	displays      map[int]*image.RGBA

	captureCh chan tea.Msg
	preview   *image.RGBA
	demo      bool
	capState  capture.State
	count     int
	cue       bool
	shotCount int
	warning   string
	shots     model.ShotSet
	startedAt time.Time

	pick    *selection.Selection
	session *booth.Session
}

type activationProgressMsg struct {
	gen      int
	progress cloud.Progress
}

type activationDoneMsg struct {
	gen    int
	device cloud.Device
	err    error
}

type captureEventMsg struct {
	gen   int
	event capture.Event
}

type captureDoneMsg struct {
	gen   int
	shots model.ShotSet
	err   error
}

type templateTickMsg struct {
	gen int
	at  time.Time
}

type processedMsg struct {
	gen        int
	composeErr error
	uploadErr  error
}

type printedMsg struct {
	gen       int
	records   []model.PrintRecord
	err       error
	remaining int
	finishErr error
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	selectedRow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true).Padding(0, 2).
			Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#C89A3A"))
)

// NewModel constructs the kiosk model. ctx bounds every background operation.
func NewModel(ctx context.Context, deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = accentStyle
	return &Model{
		deps:     deps,
		ctx:      ctx,
		keys:     defaultKeyMap(),
		help:     help.New(),
		spin:     spin,
		screen:   screenLocked,
		tasks:    &tasks{},
		chosen:   -1,
		displays: map[int]*image.RGBA{},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.enterLocked(""))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case activationProgressMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.activation = msg.progress
		return m, m.listen()
	case activationDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.activationDone(msg)
	case templateTickMsg:
		if msg.gen != m.gen || m.screen != screenTemplates {
			return m, nil
		}
		return m.templateTick(msg.at)
	case captureEventMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m, tea.Batch(m.applyCaptureEvent(msg.event), m.listen())
	case captureDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.captureDone(msg)
	case processedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.processed(msg)
	case printedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.printDone(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLocked:
		if key.Matches(msg, m.keys.Retry) && !m.activating {
			return m, m.enterLocked("")
		}
	case screenWelcome:
		switch {
		case key.Matches(msg, m.keys.Settings):
			m.setScreen(screenSettings)
			m.settingIndex = 0
		case key.Matches(msg, m.keys.Start):
			return m, m.enterTemplates()
		}
	case screenSettings:
		return m, m.handleSettingsKey(msg)
	case screenTemplates:
		return m, m.handleTemplatesKey(msg)
	case screenSelect:
		return m, m.handleSelectKey(msg)
	case screenPrint:
		if n := digit(msg.String()); n >= 1 && n <= 3 {
			return m, m.startPrint(model.PrintOption(n))
		}
	}
	return m, nil
}

func (m *Model) setScreen(s screen) {
	m.screen = s
	m.gen++
	if m.deps.Status != nil {
		m.deps.Status.Screen(s.String())
	}
}

// listen waits for the next message of the running background operation.
func (m *Model) listen() tea.Cmd {
	ch := m.captureCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return <-ch
	}
}

func (m *Model) enterLocked(reason string) tea.Cmd {
	m.setScreen(screenLocked)
	m.lockReason = reason
	m.activating = true
	m.activation = cloud.Progress{Phase: cloud.PhaseRegistering, Attempt: 1}
	gen := m.gen
	ch := make(chan tea.Msg, 16)
	m.captureCh = ch
	ctx := m.ctx
	activator := m.deps.Activator
	t := m.tasks
	if !t.start() {
		return nil
	}
	go func() {
		defer t.done()
		dev, err := activator.Activate(ctx, func(p cloud.Progress) {
			select {
			case ch <- activationProgressMsg{gen: gen, progress: p}:
			default:
			}
		})
		select {
		case ch <- activationDoneMsg{gen: gen, device: dev, err: err}:
		case <-ctx.Done():
		}
	}()
	return m.listen()
}

func (m *Model) activationDone(msg activationDoneMsg) (tea.Model, tea.Cmd) {
	m.activating = false
	m.captureCh = nil
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.deps.Logger.Warn("activation failed", "error", msg.err)
		m.lockReason = "Could not reach the server."
		return m, nil
	}
	m.setRemaining(msg.device.RemainingSessions)
	if msg.device.RemainingSessions <= 0 {
		m.lockReason = "No sessions remaining."
		return m, nil
	}
	m.enterWelcome("")
	return m, nil
}

// announce tells operator clients how a guest session ended.
func (m *Model) announce(outcome string) {
	if m.deps.Status != nil {
		m.deps.Status.Session(outcome)
	}
}

func (m *Model) setRemaining(n int) {
	m.remaining = n
	if m.deps.Recorder != nil {
		m.deps.Recorder.SetRemaining(n)
	}
	if m.deps.Status != nil {
		m.deps.Status.Remaining(n)
	}
}

func (m *Model) enterWelcome(notice string) {
	m.setScreen(screenWelcome)
	m.notice = notice
	m.session = nil
	m.shots = nil
	m.pick = nil
	m.preview = nil
}

func (m *Model) handleSettingsKey(msg tea.KeyMsg) tea.Cmd {
	items := settingItems()
	delta := 0
	switch {
	case key.Matches(msg, m.keys.Back):
		m.enterWelcome("")
		return nil
	case key.Matches(msg, m.keys.Up):
		m.settingIndex = (m.settingIndex - 1 + len(items)) % len(items)
		return nil
	case key.Matches(msg, m.keys.Down):
		m.settingIndex = (m.settingIndex + 1) % len(items)
		return nil
	case key.Matches(msg, m.keys.Left):
		delta = -1
	case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Toggle):
		delta = 1
	default:
		return nil
	}
	item := items[m.settingIndex]
	if _, err := m.deps.Settings.Update(func(s *model.Settings) { item.change(s, delta) }); err != nil {
		m.deps.Logger.Error("failed to save settings", "error", err)
		m.notice = "Could not save settings."
		return nil
	}
	m.notice = ""
	m.deps.Logger.Info("setting changed", "setting", item.label, "value", item.value(m.deps.Settings.Get()))
	return nil
}

func (m *Model) enterTemplates() tea.Cmd {
	templates, err := m.deps.Templates()
	if err != nil || len(templates) == 0 {
		if err != nil {
			m.deps.Logger.Warn("template library unavailable", "error", err)
		}
		m.notice = "No templates available."
		return nil
	}
	m.setScreen(screenTemplates)
	m.templates = templates
	m.templateIndex = 0
	m.chosen = -1
	m.timerDone = false
	m.displays = map[int]*image.RGBA{}
	m.deadline = time.Now().Add(TemplateTimeout)
	return m.templateTickCmd()
}

func (m *Model) templateTickCmd() tea.Cmd {
	gen := m.gen
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return templateTickMsg{gen: gen, at: t}
	})
}

func (m *Model) templateTick(now time.Time) (tea.Model, tea.Cmd) {
	if now.Before(m.deadline) {
		return m, m.templateTickCmd()
	}
	m.timerDone = true
	if m.chosen >= 0 {
		return m, m.startCapture()
	}
	return m, nil
}

func (m *Model) handleTemplatesKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.enterWelcome("")
		return nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Left):
		m.templateIndex = (m.templateIndex - 1 + len(m.templates)) % len(m.templates)
		return nil
	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Right):
		m.templateIndex = (m.templateIndex + 1) % len(m.templates)
		return nil
	case key.Matches(msg, m.keys.Toggle):
		return m.chooseTemplate(m.templateIndex)
	}
	if n := digit(msg.String()); n > 0 && n <= len(m.templates) {
		m.templateIndex = n - 1
		return m.chooseTemplate(n - 1)
	}
	return nil
}

// chooseTemplate marks a template. Once the timer has run out the choice starts the capture.
func (m *Model) chooseTemplate(i int) tea.Cmd {
	m.chosen = i
	if m.timerDone {
		return m.startCapture()
	}
	return nil
}

func (m *Model) secondsLeft() int {
	left := time.Until(m.deadline)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (m *Model) startCapture() tea.Cmd {
	m.setScreen(screenCapture)
	m.preview = nil
	m.demo = false
	m.capState = capture.StateInitializing
	m.count = 0
	m.cue = false
	m.shotCount = 0
	m.warning = ""
	m.shots = nil
	m.startedAt = time.Now()

	gen := m.gen
	ch := make(chan tea.Msg, 32)
	m.captureCh = ch
	ctx := m.ctx
	run := m.deps.Capture
	t := m.tasks
	if !t.start() {
		return nil
	}
	go func() {
		defer t.done()
		shots, err := run(ctx, func(e capture.Event) {
			msg := captureEventMsg{gen: gen, event: e}
			if e.Kind == capture.EventPreview {
				select {
				case ch <- msg:
				default:
				}
				return
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		})
		select {
		case ch <- captureDoneMsg{gen: gen, shots: shots, err: err}:
		case <-ctx.Done():
		}
	}()
	return m.listen()
}

func (m *Model) applyCaptureEvent(e capture.Event) tea.Cmd {
	if m.deps.Status != nil {
		m.deps.Status.Capture(e)
	}
	switch e.Kind {
	case capture.EventPreview:
		if !e.Frame.Empty() {
			m.preview = e.Frame.Image
			m.demo = e.Demo
		}
	case capture.EventState:
		m.capState = e.State
		m.count = e.Count
		m.shotCount = e.Shots
		m.cue = false
	case capture.EventCue:
		m.cue = true
		return m.ringBell()
	case capture.EventCaptured:
		m.shotCount = e.Shots
		if m.deps.Recorder != nil {
			m.deps.Recorder.ShotCaptured()
		}
	case capture.EventWarning:
		m.warning = e.Message
		if m.deps.Recorder != nil {
			m.deps.Recorder.CaptureWarning()
		}
	case capture.EventFinished:
		m.capState = e.State
	}
	return nil
}

// ringBell writes the terminal bell. Write errors are ignored.
func (m *Model) ringBell() tea.Cmd {
	bell := m.deps.Bell
	if bell == nil {
		return nil
	}
	return func() tea.Msg {
		_, _ = io.WriteString(bell, "\a")
		return nil
	}
}

func (m *Model) captureDone(msg captureDoneMsg) (tea.Model, tea.Cmd) {
	m.captureCh = nil
	if msg.err != nil || len(msg.shots) == 0 {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.deps.Logger.Warn("capture session failed", "shots", len(msg.shots), "error", msg.err)
		if m.deps.Recorder != nil {
			m.deps.Recorder.SessionFinished("capture_failed")
		}
		m.announce("capture_failed")
		m.enterWelcome("Something went wrong with the camera. Please try again.")
		return m, nil
	}
	m.shots = msg.shots
	m.pick = selection.New(len(msg.shots))
	m.setScreen(screenSelect)
	return m, nil
}

func (m *Model) handleSelectKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Confirm) {
		if !m.pick.Ready() {
			m.notice = fmt.Sprintf("Pick %d photos.", selection.Size)
			return nil
		}
		return m.startProcessing()
	}
	n := digit(msg.String())
	if n == 0 {
		return nil
	}
	if _, _, err := m.pick.Toggle(n - 1); err != nil {
		if errors.Is(err, selection.ErrSelectionFull) {
			m.notice = "All slots are full. Deselect a photo first."
		}
		return nil
	}
	m.notice = ""
	return nil
}

func (m *Model) startProcessing() tea.Cmd {
	m.setScreen(screenProcessing)
	m.notice = ""
	tmpl := m.templates[m.chosen]
	m.session = booth.NewSession(tmpl, m.shots, m.startedAt)
	gen := m.gen
	ctx := m.ctx
	pipeline := m.deps.Pipeline
	sess := m.session
	frames := m.pick.Frames(m.shots)
	t := m.tasks
	return func() tea.Msg {
		if !t.start() {
			return nil
		}
		defer t.done()
		if err := pipeline.Compose(ctx, sess, frames); err != nil {
			return processedMsg{gen: gen, composeErr: err}
		}
		return processedMsg{gen: gen, uploadErr: pipeline.Publish(ctx, sess)}
	}
}

func (m *Model) processed(msg processedMsg) (tea.Model, tea.Cmd) {
	if msg.composeErr != nil {
		m.deps.Logger.Error("composition failed", "error", msg.composeErr)
		m.deps.Pipeline.Record(m.ctx, m.session, "compose_failed")
		m.announce("compose_failed")
		m.enterWelcome("Sorry, we could not create your photos.")
		return m, nil
	}
	m.setScreen(screenPrint)
	if msg.uploadErr != nil {
		m.notice = "Download link unavailable. Your photos will still print."
	}
	return m, nil
}

func (m *Model) startPrint(option model.PrintOption) tea.Cmd {
	m.setScreen(screenPrinting)
	m.notice = ""
	gen := m.gen
	ctx := m.ctx
	pipeline := m.deps.Pipeline
	sess := m.session
	t := m.tasks
	return func() tea.Msg {
		if !t.start() {
			return nil
		}
		defer t.done()
		records, err := pipeline.Print(ctx, sess, option)
		if err != nil {
			return printedMsg{gen: gen, records: records, err: err}
		}
		remaining, ferr := pipeline.Finish(ctx, sess)
		return printedMsg{gen: gen, records: records, remaining: remaining, finishErr: ferr}
	}
}

func (m *Model) printDone(msg printedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.deps.Pipeline.Record(m.ctx, m.session, "print_failed")
		m.announce("print_failed")
		if m.deps.Status != nil {
			m.deps.Status.Warn("print failed: " + msg.err.Error())
		}
		m.enterWelcome("Printing failed. Please ask the attendant.")
		return m, nil
	}
	if errors.Is(msg.finishErr, context.Canceled) {
		return m, nil
	}
	m.deps.Logger.Info("session printed", "jobs", len(msg.records), "remaining", msg.remaining)
	m.announce("completed")
	m.setRemaining(msg.remaining)
	if msg.remaining <= 0 {
		return m, m.enterLocked("No sessions remaining.")
	}
	m.enterWelcome("Thank you!")
	return m, nil
}
