// Package tray renders kiosk status for the operator tray menu.
package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/tuibooth/internal/api"
)

// DefaultPollInterval is how often the menu refreshes from the kiosk.
const DefaultPollInterval = 2 * time.Second

// Kiosk is the operator API of the running kiosk.
type Kiosk interface {
	Status(ctx context.Context) (api.StatusResponse, error)
	Settings(ctx context.Context) (api.SettingsResponse, error)
	PatchSettings(ctx context.Context, patch api.SettingsPatch) (api.SettingsResponse, error)
}

// Titles are the read-only menu lines.
type Titles struct {
	Status    string
	Remaining string
	Warning   string
}

// TitlesFor renders a kiosk status as menu lines.
func TitlesFor(st api.StatusResponse) Titles {
	screen := st.Screen
	if screen == "" {
		screen = "starting"
	}
	status := "Kiosk: " + screen
	if st.State != "" {
		status += " (" + st.State + ")"
	}
	if st.Shots > 0 {
		status += fmt.Sprintf(" %d shots", st.Shots)
	}

	remaining := "Sessions left: ?"
	if st.Remaining != nil {
		remaining = fmt.Sprintf("Sessions left: %d", *st.Remaining)
	}

	warning := "No warnings"
	if st.LastWarning != "" {
		warning = "Warning: " + st.LastWarning
	}
	return Titles{Status: status, Remaining: remaining, Warning: warning}
}
