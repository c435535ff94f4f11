// Package menu binds the operator menu to the desktop system tray.
package menu

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/verte-zerg/tuibooth/internal/api"
	"github.com/verte-zerg/tuibooth/internal/tray"
)

type Menu struct {
	kiosk    tray.Kiosk
	logger   *slog.Logger
	interval time.Duration
	onQuit   func()

	mu sync.Mutex

	statusItem    *systray.MenuItem
	remainingItem *systray.MenuItem
	warningItem   *systray.MenuItem
	cameraItem    *systray.MenuItem
	printerItem   *systray.MenuItem
	invertItem    *systray.MenuItem
}

type Config struct {
	Kiosk        tray.Kiosk
	Logger       *slog.Logger
	PollInterval time.Duration
	OnQuit       func()
}

func New(cfg Config) *Menu {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = tray.DefaultPollInterval
	}
	return &Menu{kiosk: cfg.Kiosk, logger: cfg.Logger, interval: interval, onQuit: cfg.OnQuit}
}

// Run blocks until the menu is closed.
func (t *Menu) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Menu) onReady() {
	systray.SetIcon(tray.Icon())
	systray.SetTitle("tuibooth")
	systray.SetTooltip("tuibooth kiosk")

	t.statusItem = systray.AddMenuItem("Kiosk: connecting", "Current kiosk screen")
	t.statusItem.Disable()
	t.remainingItem = systray.AddMenuItem("Sessions left: ?", "Licensed sessions remaining")
	t.remainingItem.Disable()
	t.warningItem = systray.AddMenuItem("No warnings", "Last capture warning")
	t.warningItem.Disable()

	systray.AddSeparator()

	t.cameraItem = systray.AddMenuItemCheckbox("Camera simulation", "Use the webcam and demo frames", false)
	t.printerItem = systray.AddMenuItemCheckbox("Printer simulation", "Write prints as PNG files", false)
	t.invertItem = systray.AddMenuItemCheckbox("Mirror camera", "Flip the preview horizontally", false)

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Close the operator menu")

	ctx, cancel := context.WithCancel(context.Background())
	go t.poll(ctx)

	go func() {
		for {
			select {
			case <-t.cameraItem.ClickedCh:
				t.toggle(ctx, t.cameraItem, func(p *api.SettingsPatch, v bool) { p.CameraSimulation = &v })
			case <-t.printerItem.ClickedCh:
				t.toggle(ctx, t.printerItem, func(p *api.SettingsPatch, v bool) { p.PrinterSimulation = &v })
			case <-t.invertItem.ClickedCh:
				t.toggle(ctx, t.invertItem, func(p *api.SettingsPatch, v bool) { p.InvertCamera = &v })
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				cancel()
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Menu) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Menu) poll(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		t.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Menu) refresh(ctx context.Context) {
	st, err := t.kiosk.Status(ctx)
	if err != nil {
		t.logger.Debug("kiosk status unavailable", "error", err)
		t.setTitles(tray.Titles{Status: "Kiosk: offline", Remaining: "Sessions left: ?", Warning: "No warnings"})
		return
	}
	t.setTitles(tray.TitlesFor(st))

	settings, err := t.kiosk.Settings(ctx)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	setChecked(t.cameraItem, settings.CameraSimulation)
	setChecked(t.printerItem, settings.PrinterSimulation)
	setChecked(t.invertItem, settings.InvertCamera)
}

func (t *Menu) toggle(ctx context.Context, item *systray.MenuItem, set func(*api.SettingsPatch, bool)) {
	t.mu.Lock()
	next := !item.Checked()
	t.mu.Unlock()

	var patch api.SettingsPatch
	set(&patch, next)
	if _, err := t.kiosk.PatchSettings(ctx, patch); err != nil {
		t.logger.Error("failed to update kiosk settings", "error", err)
		return
	}
	t.mu.Lock()
	setChecked(item, next)
	t.mu.Unlock()
}

func (t *Menu) setTitles(titles tray.Titles) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle(titles.Status)
	t.remainingItem.SetTitle(titles.Remaining)
	t.warningItem.SetTitle(titles.Warning)
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}
