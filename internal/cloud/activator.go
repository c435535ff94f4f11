package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Activation defaults.
const (
	DefaultRetryDelay   = 5 * time.Second
	DefaultMaxAttempts  = 10
	DefaultPollInterval = 3 * time.Second
)

// Phase is the activation progress reported to the lock screen.
type Phase int

const (
	PhaseRegistering Phase = iota
	PhaseRetrying
	PhaseAwaitingActivation
	PhaseActivated
)

func (p Phase) String() string {
	switch p {
	case PhaseRegistering:
		return "registering"
	case PhaseRetrying:
		return "retrying"
	case PhaseAwaitingActivation:
		return "awaiting activation"
	case PhaseActivated:
		return "activated"
	default:
		return "unknown"
	}
}

// Progress is one activation update.
type Progress struct {
	Phase   Phase
	Attempt int
	Device  Device
	Err     error
}

// Activator registers the device and waits until the backend activates it.
type Activator struct {
	client       Client
	machineID    string
	machineName  string
	RetryDelay   time.Duration
	MaxAttempts  int
	PollInterval time.Duration
	logger       *slog.Logger
}

// NewActivator creates an activator with the default retry policy.
func NewActivator(client Client, machineID, machineName string, logger *slog.Logger) *Activator {
	return &Activator{
		client:       client,
		machineID:    machineID,
		machineName:  machineName,
		RetryDelay:   DefaultRetryDelay,
		MaxAttempts:  DefaultMaxAttempts,
		PollInterval: DefaultPollInterval,
		logger:       logger,
	}
}

// Activate blocks until the device is activated, registration retries run
// out, or ctx ends. Client errors (4xx) end it at once. progress may be nil.
func (a *Activator) Activate(ctx context.Context, progress func(Progress)) (Device, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	dev, err := a.register(ctx, progress)
	if err != nil {
		return Device{}, err
	}
	for !dev.Activated {
		progress(Progress{Phase: PhaseAwaitingActivation, Device: dev})
		if err := wait(ctx, a.PollInterval); err != nil {
			return dev, err
		}
		next, err := a.client.Status(ctx, a.machineID)
		if err != nil {
			if !IsRetryable(err) {
				return dev, fmt.Errorf("device status: %w", err)
			}
			a.logger.Warn("device status failed", "error", err)
			continue
		}
		dev = next
	}
	a.logger.Info("device activated", "remaining", dev.RemainingSessions)
	progress(Progress{Phase: PhaseActivated, Device: dev})
	return dev, nil
}

func (a *Activator) register(ctx context.Context, progress func(Progress)) (Device, error) {
	var lastErr error
	for attempt := 1; attempt <= max(a.MaxAttempts, 1); attempt++ {
		if attempt == 1 {
			progress(Progress{Phase: PhaseRegistering, Attempt: attempt})
		} else {
			progress(Progress{Phase: PhaseRetrying, Attempt: attempt, Err: lastErr})
			if err := wait(ctx, a.RetryDelay); err != nil {
				return Device{}, err
			}
		}
		dev, err := a.client.Register(ctx, a.machineID, a.machineName)
		if err == nil {
			return dev, nil
		}
		if ctx.Err() != nil {
			return Device{}, ctx.Err()
		}
		if !IsRetryable(err) {
			a.logger.Error("device registration rejected", "attempt", attempt, "error", err)
			return Device{}, fmt.Errorf("device registration: %w", err)
		}
		lastErr = err
		a.logger.Warn("device registration failed", "attempt", attempt, "error", err)
	}
	return Device{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, max(a.MaxAttempts, 1), lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
