// Package camera opens live frame producers and the demo fallback feeder.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
)

var (
	// ErrCameraUnavailable is returned when no backend/device combination yields a frame.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrReadFailure is returned when a device read produced no frame.
	ErrReadFailure = errors.New("camera read failure")
)

// Backend is a capture API preference.
type Backend int

const (
	BackendAny Backend = iota
	BackendMSMF
	BackendDShow
)

// String returns the backend label used in logs.
func (b Backend) String() string {
	switch b {
	case BackendMSMF:
		return "msmf"
	case BackendDShow:
		return "dshow"
	default:
		return "any"
	}
}

// Device is an open capture handle.
type Device interface {
	Read(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// Configurer is implemented by devices that accept capture tuning.
type Configurer interface {
	// Configure requests a resolution and autofocus and reports the negotiated size.
	Configure(width, height int, autofocus bool) (int, int, error)
}

// Driver opens devices by index and backend.
type Driver interface {
	Open(index int, backend Backend) (Device, error)
}

// Mode selects the device class to probe.
type Mode int

const (
	ModeWebcam Mode = iota
	ModeDSLR
)

// Probe policy constants.
const (
	DSLRScanLimit = 5
	DSLRWidth     = 1920
	DSLRHeight    = 1080
)

var (
	webcamBackends = []Backend{BackendMSMF, BackendDShow, BackendAny}
	dslrBackends   = []Backend{BackendDShow, BackendMSMF}
)

// OpenWebcam tries the preferred backends on index, then the generic backend on index 0.
func OpenWebcam(ctx context.Context, drv Driver, index int, logger *slog.Logger) (Device, error) {
	for _, backend := range webcamBackends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dev, err := drv.Open(index, backend)
		if err == nil {
			logger.Info("webcam opened", "index", index, "backend", backend.String())
			return dev, nil
		}
		logger.Debug("webcam backend failed", "index", index, "backend", backend.String(), "error", err)
	}
	if index != 0 {
		dev, err := drv.Open(0, BackendAny)
		if err == nil {
			logger.Info("webcam opened on fallback index", "index", 0, "backend", BackendAny.String())
			return dev, nil
		}
	}
	return nil, fmt.Errorf("webcam %d: %w", index, ErrCameraUnavailable)
}

// OpenDSLR scans device indices and accepts the first device that reads a non-empty frame.
func OpenDSLR(ctx context.Context, drv Driver, logger *slog.Logger) (Device, error) {
	for index := 0; index < DSLRScanLimit; index++ {
		for _, backend := range dslrBackends {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dev, err := drv.Open(index, backend)
			if err != nil {
				continue
			}
			if !probe(ctx, dev) {
				_ = dev.Close()
				logger.Debug("dslr probe read empty", "index", index, "backend", backend.String())
				continue
			}
			configure(dev, logger)
			logger.Info("dslr opened", "index", index, "backend", backend.String())
			return dev, nil
		}
	}
	return nil, fmt.Errorf("dslr scan: %w", ErrCameraUnavailable)
}

// Open dispatches on mode.
func Open(ctx context.Context, drv Driver, mode Mode, index int, logger *slog.Logger) (Device, error) {
	if mode == ModeDSLR {
		return OpenDSLR(ctx, drv, logger)
	}
	return OpenWebcam(ctx, drv, index, logger)
}

func probe(ctx context.Context, dev Device) bool {
	img, err := dev.Read(ctx)
	return err == nil && img != nil && !img.Rect.Empty()
}

func configure(dev Device, logger *slog.Logger) {
	cfg, ok := dev.(Configurer)
	if !ok {
		return
	}
	w, h, err := cfg.Configure(DSLRWidth, DSLRHeight, true)
	if err != nil {
		logger.Warn("dslr configure failed", "error", err)
		return
	}
	logger.Info("dslr resolution", "requested_width", DSLRWidth, "requested_height", DSLRHeight, "width", w, "height", h)
}
