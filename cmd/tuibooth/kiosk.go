package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuibooth/internal/api"
	"github.com/verte-zerg/tuibooth/internal/booth"
	"github.com/verte-zerg/tuibooth/internal/button"
	"github.com/verte-zerg/tuibooth/internal/camera"
	"github.com/verte-zerg/tuibooth/internal/camera/cvcam"
	"github.com/verte-zerg/tuibooth/internal/capture"
	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/composite"
	"github.com/verte-zerg/tuibooth/internal/config"
	"github.com/verte-zerg/tuibooth/internal/events"
	"github.com/verte-zerg/tuibooth/internal/layout"
	"github.com/verte-zerg/tuibooth/internal/logging"
	"github.com/verte-zerg/tuibooth/internal/machineid"
	"github.com/verte-zerg/tuibooth/internal/metrics"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/printer"
	"github.com/verte-zerg/tuibooth/internal/store"
	"github.com/verte-zerg/tuibooth/internal/stylize"
	"github.com/verte-zerg/tuibooth/internal/stylize/onnx"
	"github.com/verte-zerg/tuibooth/internal/template"
	"github.com/verte-zerg/tuibooth/internal/tui"
)

func runKioskCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the kiosk needs an interactive terminal")
	}

	cfgPath := config.DefaultConfigPath()
	settings, loadErr := config.Load(cfgPath)
	applyFlags(cmd, &settings)
	config.ResolvePaths(&settings)
	if err := validateSettings(settings); err != nil {
		return err
	}

	logPath := kioskLogFile
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logOut, closeLog, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			// Best-effort close of the log file.
			_ = cerr
		}
	}()
	logger := logging.NewLogger(settings.LogLevel, logOut)
	if loadErr != nil {
		logger.Warn("config file ignored, using defaults", "path", logging.SanitizePath(cfgPath), "error", loadErr)
	}

	machineID, err := machineid.NewResolver(config.DefaultMachineIDPath()).ID()
	if err != nil {
		return fmt.Errorf("failed to resolve machine id: %w", err)
	}
	logger.Info("kiosk starting", "version", version, "machine_id", machineID)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close db", "error", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := config.NewLive(cfgPath, settings)
	live.Watch(func(s model.Settings) {
		logger.Info("settings saved",
			"camera_simulation", s.CameraSimulation,
			"printer_simulation", s.PrinterSimulation,
			"invert_camera", s.InvertCamera,
			"countdown_seconds", s.CountdownSeconds,
			"webcam_index", s.WebcamIndex)
	})
	mets := metrics.New()
	status := events.NewBroadcaster()

	style := stylize.NewService(settings.ModelPath, onnx.Load, logging.WithComponent(logger, "stylize"))
	defer func() {
		if cerr := style.Close(); cerr != nil {
			logger.Warn("failed to release style model", "error", cerr)
		}
	}()
	// Warm the model up before the first guest needs it.
	go func() {
		if err := style.EnsureLoaded(); err != nil {
			logger.Warn("style filter disabled", "error", err)
		}
	}()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "tuibooth"
	}
	client := cloud.NewHTTPClient(settings.APIBaseURL, logging.WithComponent(logger, "cloud"))
	pipeline := &livePipeline{
		settings:  live,
		machineID: machineID,
		engine:    composite.NewEngine(style, logging.WithComponent(logger, "composite")),
		styleOK:   func() bool { return style.EnsureLoaded() == nil },
		client:    client,
		sink:      newPrintSinks(live),
		ledger:    st,
		recorder:  mets,
		logger:    logging.WithComponent(logger, "booth"),
	}

	demo := camera.NewDemoFeeder(settings.DemoDir, logging.WithComponent(logger, "demo"))
	captureLogger := logging.WithComponent(logger, "capture")
	runCapture := func(ctx context.Context, observe capture.Observer) (model.ShotSet, error) {
		cfg := capture.DefaultConfig(live.Get())
		return capture.NewRunner(cfg, cvcam.Driver{}, demo, observe, captureLogger).Run(ctx)
	}

	kiosk := tui.NewModel(ctx, tui.Deps{
		Settings:  live,
		MachineID: machineID,
		Activator: cloud.NewActivator(client, machineID, hostname, logging.WithComponent(logger, "activation")),
		Templates: func() ([]template.Template, error) {
			return template.LoadLibrary(live.Get().TemplateDir, logging.WithComponent(logger, "templates"))
		},
		Capture:  runCapture,
		Pipeline: pipeline,
		Status:   status,
		Recorder: mets,
		Logger:   logging.WithComponent(logger, "tui"),
		Bell:     os.Stdout,
	})
	// Runs before the store and the style model close.
	defer func() {
		cancel()
		kiosk.Wait()
	}()
	program := tea.NewProgram(kiosk, tea.WithAltScreen())

	if settings.ListenAddr != "off" {
		srv := api.NewServer(settings.ListenAddr, api.ServerConfig{
			Logger:      logging.WithComponent(logger, "api"),
			Broadcaster: status,
			Metrics:     mets.Handler(),
			Settings:    live,
			MachineID:   machineID,
			Version:     version,
			StartTime:   time.Now(),
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("operator API stopped", "error", err)
			}
		}()
	}

	if settings.ButtonPin > 0 {
		startButton(ctx, settings.ButtonPin, program, logging.WithComponent(logger, "button"))
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run kiosk TUI: %w", err)
	}
	logger.Info("kiosk stopped")
	return nil
}

// startButton maps presses of the GPIO button to the enter key.
func startButton(ctx context.Context, pin int, program *tea.Program, logger *slog.Logger) {
	input, err := button.OpenRPi(pin)
	if err != nil {
		logger.Warn("start button unavailable", "pin", pin, "error", err)
		return
	}
	watcher := button.NewWatcher(input, logger)
	go func() {
		err := watcher.Run(ctx, func() { program.Send(tea.KeyMsg{Type: tea.KeyEnter}) })
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("start button stopped", "error", err)
		}
	}()
}

// livePipeline builds the booth pipeline from the current settings for every
// step, so printer profiles and settle time follow operator changes.
type livePipeline struct {
	settings  *config.Live
	machineID string
	engine    *composite.Engine
	styleOK   func() bool
	client    cloud.Client
	sink      printer.Sink
	ledger    booth.Ledger
	recorder  booth.Recorder
	logger    *slog.Logger
}

func (p *livePipeline) service() *booth.Service {
	cfg := booth.ConfigFromSettings(p.settings.Get(), p.machineID)
	return booth.NewService(cfg, p.engine, p.styleOK, p.client, p.sink, p.ledger, p.recorder, p.logger)
}

func (p *livePipeline) Compose(ctx context.Context, sess *booth.Session, frames []model.Frame) error {
	return p.service().Compose(ctx, sess, frames)
}

func (p *livePipeline) Publish(ctx context.Context, sess *booth.Session) error {
	return p.service().Publish(ctx, sess)
}

func (p *livePipeline) Print(ctx context.Context, sess *booth.Session, option model.PrintOption) ([]model.PrintRecord, error) {
	return p.service().Print(ctx, sess, option)
}

func (p *livePipeline) Finish(ctx context.Context, sess *booth.Session) (int, error) {
	return p.service().Finish(ctx, sess)
}

func (p *livePipeline) Record(ctx context.Context, sess *booth.Session, outcome string) {
	p.service().Record(ctx, sess, outcome)
}

// printSinks routes each job to the simulation folder or the spooler
// depending on the printer simulation setting at print time.
type printSinks struct {
	settings *config.Live
	spooler  *printer.SpoolerSink

	mu     sync.Mutex
	sim    *printer.SimulationSink
	simDir string
}

func newPrintSinks(live *config.Live) *printSinks {
	return &printSinks{settings: live, spooler: printer.NewSpoolerSink(printer.DefaultDPI)}
}

func (p *printSinks) Print(ctx context.Context, job layout.Job, name string) (printer.Result, error) {
	s := p.settings.Get()
	if s.PrinterSimulation {
		return p.simulation(s.PrintsDir).Print(ctx, job, name)
	}
	return p.spooler.Print(ctx, job, name)
}

// simulation returns the sink for dir, keeping its job counter until the folder changes.
func (p *printSinks) simulation(dir string) *printer.SimulationSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sim == nil || p.simDir != dir {
		p.sim = printer.NewSimulationSink(dir)
		p.simDir = dir
	}
	return p.sim
}
