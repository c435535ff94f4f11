// Package main provides the CLI entrypoint for tuibooth.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuibooth/internal/model"
)

const defaultListenAddr = "127.0.0.1:8765"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	kioskCameraSim  bool
	kioskPrinterSim bool
	kioskWebcam     int
	kioskCountdown  int
	kioskTemplates  string
	kioskAPIURL     string
	kioskListen     string
	kioskButtonPin  int
	kioskLogLevel   string
	kioskLogFile    string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuibooth",
		Short:         "Terminal photobooth kiosk",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       version,
		RunE:          runKioskCmd,
	}

	defaults := model.DefaultSettings()
	rootCmd.Flags().BoolVar(&kioskCameraSim, "camera-sim", defaults.CameraSimulation, "use the webcam with demo fallback instead of the DSLR")
	rootCmd.Flags().BoolVar(&kioskPrinterSim, "printer-sim", defaults.PrinterSimulation, "write prints as PNG files instead of spooling")
	rootCmd.Flags().IntVar(&kioskWebcam, "webcam", defaults.WebcamIndex, "webcam index")
	rootCmd.Flags().IntVar(&kioskCountdown, "countdown", defaults.CountdownSeconds, "countdown seconds before each shot")
	rootCmd.Flags().StringVar(&kioskTemplates, "templates", "", "template directory")
	rootCmd.Flags().StringVar(&kioskAPIURL, "api-url", defaults.APIBaseURL, "device API base URL")
	rootCmd.Flags().StringVar(&kioskListen, "listen", defaultListenAddr, "operator API address ('off' disables it)")
	rootCmd.Flags().IntVar(&kioskButtonPin, "button-pin", 0, "BCM pin of the GPIO start button (0 disables it)")
	rootCmd.PersistentFlags().StringVar(&kioskLogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&kioskLogFile, "log-file", "", "log file ('-' for stderr)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTemplatesCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newTrayCmd())

	return rootCmd
}

// applyFlags overlays the flags the user set explicitly onto settings.
func applyFlags(cmd *cobra.Command, s *model.Settings) {
	flags := cmd.Flags()
	if flags.Changed("camera-sim") {
		s.CameraSimulation = kioskCameraSim
	}
	if flags.Changed("printer-sim") {
		s.PrinterSimulation = kioskPrinterSim
	}
	if flags.Changed("webcam") {
		s.WebcamIndex = kioskWebcam
	}
	if flags.Changed("countdown") {
		s.CountdownSeconds = kioskCountdown
	}
	if flags.Changed("templates") {
		s.TemplateDir = kioskTemplates
	}
	if flags.Changed("api-url") {
		s.APIBaseURL = kioskAPIURL
	}
	if flags.Changed("listen") {
		s.ListenAddr = kioskListen
	}
	if flags.Changed("button-pin") {
		s.ButtonPin = kioskButtonPin
	}
	if flags.Changed("log-level") {
		s.LogLevel = kioskLogLevel
	}
	if s.ListenAddr == "" {
		s.ListenAddr = defaultListenAddr
	}
}

func validateSettings(s model.Settings) error {
	if s.CountdownSeconds <= 0 {
		return fmt.Errorf("--countdown must be > 0")
	}
	if s.WebcamIndex < 0 {
		return fmt.Errorf("--webcam must be >= 0")
	}
	if s.ButtonPin < 0 {
		return fmt.Errorf("--button-pin must be >= 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
