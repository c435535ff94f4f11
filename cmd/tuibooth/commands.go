package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/tuibooth/internal/api"
	"github.com/verte-zerg/tuibooth/internal/camera"
	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/composite"
	"github.com/verte-zerg/tuibooth/internal/config"
	"github.com/verte-zerg/tuibooth/internal/layout"
	"github.com/verte-zerg/tuibooth/internal/logging"
	"github.com/verte-zerg/tuibooth/internal/machineid"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/printer"
	"github.com/verte-zerg/tuibooth/internal/stats"
	"github.com/verte-zerg/tuibooth/internal/statsui"
	"github.com/verte-zerg/tuibooth/internal/store"
	"github.com/verte-zerg/tuibooth/internal/stylize"
	"github.com/verte-zerg/tuibooth/internal/stylize/onnx"
	"github.com/verte-zerg/tuibooth/internal/template"
	"github.com/verte-zerg/tuibooth/internal/tray/menu"
)

var (
	templatesFormat string

	statsTemplate string
	statsSince    string
	statsLast     int

	registerWait bool

	renderTemplate string
	renderOut      string
	renderStyled   bool
	renderPage     bool

	trayURL string
)

// loadSettings reads the config file for a subcommand and builds a stderr logger.
func loadSettings(cmd *cobra.Command) (model.Settings, *slog.Logger) {
	path := config.DefaultConfigPath()
	settings, err := config.Load(path)
	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = kioskLogLevel
	}
	config.ResolvePaths(&settings)
	logger := logging.NewLogger(settings.LogLevel, os.Stderr)
	if err != nil {
		logger.Warn("config file ignored, using defaults", "path", logging.SanitizePath(path), "error", err)
	}
	return settings, logger
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := config.Save(path, model.DefaultSettings()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List usable templates",
		Args:  cobra.NoArgs,
		RunE:  runTemplatesCmd,
	}
	cmd.Flags().StringVar(&templatesFormat, "format", "table", "output format (table, json, yaml)")
	return cmd
}

type templateInfo struct {
	Name     string            `json:"name" yaml:"name"`
	Image    string            `json:"image" yaml:"image"`
	Preview  string            `json:"preview" yaml:"preview"`
	Metadata template.Metadata `json:"metadata" yaml:"metadata"`
}

func runTemplatesCmd(cmd *cobra.Command, _ []string) error {
	settings, logger := loadSettings(cmd)
	templates, err := template.LoadLibrary(settings.TemplateDir, logger)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	if len(templates) == 0 {
		logErrf("No templates found in %s\n", settings.TemplateDir)
		return fmt.Errorf("no templates found")
	}
	width := 0
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}
	return writeTemplates(cmd.OutOrStdout(), templates, templatesFormat, width)
}

// writeTemplates prints the library. width truncates table lines when positive.
func writeTemplates(w io.Writer, templates []template.Template, format string, width int) error {
	infos := make([]templateInfo, 0, len(templates))
	for _, t := range templates {
		infos = append(infos, templateInfo{Name: t.Name, Image: t.UsePath, Preview: t.DisplayPath, Metadata: t.Meta})
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return enc.Close()
	case "table":
	default:
		return fmt.Errorf("--format must be table, json or yaml")
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		meta := info.Metadata
		kind := "4R"
		if meta.IsStrip() {
			kind = "strip"
		}
		qr := "no"
		if meta.QRSlot != nil {
			qr = "yes"
		}
		rows = append(rows, []string{
			info.Name,
			kind,
			fmt.Sprintf("%dx%d", meta.Resolution.Width, meta.Resolution.Height),
			strconv.Itoa(len(meta.PhotoSlots)),
			qr,
		})
	}
	table := stats.Table{
		Headers:  []string{"Name", "Type", "Size", "Slots", "QR"},
		Rows:     rows,
		Right:    map[int]bool{3: true},
		MaxWidth: width,
	}
	for _, line := range table.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse the session ledger",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsTemplate, "template", "", "template filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	filter := model.SessionFilter{Template: statsTemplate, Last: statsLast}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		report, err := stats.BuildReport(cmd.Context(), st, filter)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		return stats.Render(cmd.OutOrStdout(), report, 80)
	}

	program := tea.NewProgram(statsui.NewModel(st, filter), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this machine with the device API",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	cmd.Flags().BoolVar(&registerWait, "wait", false, "keep polling until the device is activated")
	return cmd
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	settings, logger := loadSettings(cmd)
	machineID, err := machineid.NewResolver(config.DefaultMachineIDPath()).ID()
	if err != nil {
		return fmt.Errorf("failed to resolve machine id: %w", err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "tuibooth"
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Machine ID: %s\n", machineid.Format(machineID)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	client := cloud.NewHTTPClient(settings.APIBaseURL, logger)
	ctx := cmd.Context()
	var dev cloud.Device
	if registerWait {
		activator := cloud.NewActivator(client, machineID, hostname, logger)
		dev, err = activator.Activate(ctx, func(p cloud.Progress) {
			logErrf("%s (attempt %d)\n", p.Phase, p.Attempt)
		})
	} else {
		dev, err = client.Register(ctx, machineID, hostname)
	}
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	activated := "no"
	if dev.Activated {
		activated = "yes"
	}
	_, err = fmt.Fprintf(out, "Device: %s (%s)\nActivated: %s\nSessions left: %d\n",
		dev.DeviceName, dev.DeviceID, activated, dev.RemainingSessions)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template with demo frames to a PNG",
		Args:  cobra.NoArgs,
		RunE:  runRenderCmd,
	}
	cmd.Flags().StringVar(&renderTemplate, "template", "", "template name (default: first)")
	cmd.Flags().StringVar(&renderOut, "out", "render.png", "output file")
	cmd.Flags().BoolVar(&renderStyled, "styled", false, "apply the style filter to the frames")
	cmd.Flags().BoolVar(&renderPage, "page", false, "write the print page instead of the composite")
	return cmd
}

func runRenderCmd(cmd *cobra.Command, _ []string) error {
	settings, logger := loadSettings(cmd)
	templates, err := template.LoadLibrary(settings.TemplateDir, logger)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	if len(templates) == 0 {
		return fmt.Errorf("no templates found in %s", settings.TemplateDir)
	}
	tmpl := templates[0]
	if renderTemplate != "" {
		var ok bool
		if tmpl, ok = template.Find(templates, renderTemplate); !ok {
			return fmt.Errorf("unknown template %q", renderTemplate)
		}
	}
	background, err := tmpl.LoadImage()
	if err != nil {
		return fmt.Errorf("failed to load template image: %w", err)
	}

	style := stylize.NewService(settings.ModelPath, onnx.Load, logger)
	defer func() {
		if cerr := style.Close(); cerr != nil {
			logErrf("failed to release style model: %v\n", cerr)
		}
	}()
	if renderStyled {
		if err := style.EnsureLoaded(); err != nil {
			return fmt.Errorf("style filter unavailable: %w", err)
		}
	}

	demo := camera.NewDemoFeeder(settings.DemoDir, logger)
	frames := make([]model.Frame, len(tmpl.Meta.PhotoSlots))
	for i := range frames {
		frames[i] = demo.Next()
	}

	engine := composite.NewEngine(style, logger)
	surface := engine.Compose(context.Background(), background, tmpl.Meta, frames, renderStyled)
	if renderPage {
		surface = layout.Rasterize(surface)
	}

	if err := os.MkdirAll(filepath.Dir(renderOut), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(renderOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := printer.EncodePNG(f, surface, printer.DefaultText()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logErrf("Wrote %s (%dx%d)\n", renderOut, surface.Bounds().Dx(), surface.Bounds().Dy())
	return nil
}

func newTrayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Show the operator menu in the system tray",
		Args:  cobra.NoArgs,
		RunE:  runTrayCmd,
	}
	cmd.Flags().StringVar(&trayURL, "url", "", "operator API address of the kiosk")
	return cmd
}

func runTrayCmd(cmd *cobra.Command, _ []string) error {
	settings, logger := loadSettings(cmd)
	url := trayURL
	if url == "" {
		url = settings.ListenAddr
	}
	if url == "" || url == "off" {
		url = defaultListenAddr
	}
	logger.Info("tray connecting to kiosk", "url", url)
	menu.New(menu.Config{
		Kiosk:  api.NewClient(url),
		Logger: logging.WithComponent(logger, "tray"),
	}).Run()
	return nil
}
