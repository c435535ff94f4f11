// Package cloud talks to the admin backend: device licensing, session
// counting and session uploads.
package cloud

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted is returned when registration keeps failing.
	ErrRetriesExhausted = errors.New("registration retries exhausted")
	// ErrUploadRejected is returned when the backend answers ok=false.
	ErrUploadRejected = errors.New("upload rejected")
)

// Device is the backend view of this kiosk.
type Device struct {
	DeviceID          string `json:"deviceId"`
	DeviceName        string `json:"deviceName"`
	RemainingSessions int    `json:"remainingSessions"`
	Activated         bool   `json:"activated"`
	IsNew             bool   `json:"isNew"`
}

// Upload is the session upload response.
type Upload struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	Link      string `json:"link"`
	Message   string `json:"message"`
}

// Client is the backend contract used by the kiosk.
type Client interface {
	Register(ctx context.Context, machineID, machineName string) (Device, error)
	Status(ctx context.Context, machineID string) (Device, error)
	Decrement(ctx context.Context, machineID string) (int, error)
	UploadSession(ctx context.Context, original, styled []byte) (Upload, error)
}

// APIError is a non-2xx backend response.
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsRetryable reports whether err is worth retrying. Transport failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}
