// Package model defines shared data structures.
package model

import (
	"image"
	"time"
)

// Default setting values.
const (
	DefaultCountdownSeconds = 5
	DefaultFont             = "Poppins"
	DefaultAPIBaseURL       = "https://banga-photobooth-admin.vercel.app"
	DefaultPrintSettle      = 10
	DefaultLogLevel         = "info"
)

// ShotCount is the number of frames captured per guest session.
const ShotCount = 6

// Settings holds the persisted kiosk options.
type Settings struct {
	CameraSimulation  bool
	PrinterSimulation bool
	WebcamIndex       int
	InvertCamera      bool
	CountdownSeconds  int
	DemoDir           string

	// Printer is the legacy single-printer profile, used when a mode-specific one is empty.
	Printer      string
	PrinterStrip string
	Printer4R    string
	PrintsDir    string
	PrintSettleS int
	Font         string
	TemplateDir  string
	APIBaseURL   string
	ModelPath    string
	ListenAddr   string
	ButtonPin    int
	LogLevel     string
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		CameraSimulation:  true,
		PrinterSimulation: true,
		WebcamIndex:       0,
		CountdownSeconds:  DefaultCountdownSeconds,
		PrintSettleS:      DefaultPrintSettle,
		Font:              DefaultFont,
		APIBaseURL:        DefaultAPIBaseURL,
		LogLevel:          DefaultLogLevel,
	}
}

// Frame is an immutable captured bitmap.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Rect.Empty()
}

// ShotSet is the ordered list of frames captured for one guest.
type ShotSet []Frame

// PrintOption identifies which composite variants go on paper.
type PrintOption int

const (
	PrintOriginalPair PrintOption = iota + 1
	PrintMixed
	PrintStyledPair
)

// String returns a short label for the option.
func (o PrintOption) String() string {
	switch o {
	case PrintOriginalPair:
		return "2 original"
	case PrintMixed:
		return "1 original + 1 AI"
	case PrintStyledPair:
		return "2 AI"
	default:
		return "unknown"
	}
}

// SessionRecord captures a completed guest session for the ledger.
type SessionRecord struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time
	Template    string
	Shots       int
	Uploaded    bool
	Link        string
	StyleOK     bool
	PrintOption PrintOption
}

// PrintRecord stores one submitted print job.
type PrintRecord struct {
	SessionID   string
	PrintedAt   time.Time
	Description string
	Printer     string
	Copies      int
	Cut         bool
	Path        string
}

// SessionFilter narrows ledger queries.
type SessionFilter struct {
	Template string
	Since    *time.Time
	Last     int
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	ID       string
	EndedAt  time.Time
	Template string
	Uploaded bool
	Copies   int
}

// TemplateAggregate totals sessions and printed copies per template.
type TemplateAggregate struct {
	Template string
	Sessions int
	Copies   int
}
