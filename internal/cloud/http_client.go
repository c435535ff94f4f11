package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 64 << 10

// HTTPClient is the JSON/multipart client for the admin backend.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client rooted at baseURL.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger,
	}
}

// Register creates or looks up this device.
func (c *HTTPClient) Register(ctx context.Context, machineID, machineName string) (Device, error) {
	var dev Device
	payload := map[string]string{"machineId": machineID, "machineName": machineName}
	if err := c.postJSON(ctx, "/api/devices/register", payload, &dev); err != nil {
		return Device{}, err
	}
	c.logger.Info("device registered", "device_id", dev.DeviceID, "new", dev.IsNew, "activated", dev.Activated, "remaining", dev.RemainingSessions)
	return dev, nil
}

// Status returns the activation state and remaining session count.
func (c *HTTPClient) Status(ctx context.Context, machineID string) (Device, error) {
	var dev Device
	if err := c.postJSON(ctx, "/api/devices/status", map[string]string{"machineId": machineID}, &dev); err != nil {
		return Device{}, err
	}
	return dev, nil
}

// Decrement consumes one session and returns the remaining count.
func (c *HTTPClient) Decrement(ctx context.Context, machineID string) (int, error) {
	var resp struct {
		OK                bool `json:"ok"`
		RemainingSessions int  `json:"remainingSessions"`
	}
	if err := c.postJSON(ctx, "/api/devices/decrement", map[string]string{"machineId": machineID}, &resp); err != nil {
		return 0, err
	}
	return resp.RemainingSessions, nil
}

// UploadSession sends both composites as PNG parts and returns the share link.
func (c *HTTPClient) UploadSession(ctx context.Context, original, styled []byte) (Upload, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writeImagePart(mw, "photo_original", "original.png", original); err != nil {
		return Upload{}, err
	}
	if err := writeImagePart(mw, "photo_ai", "ai.png", styled); err != nil {
		return Upload{}, err
	}
	if err := mw.Close(); err != nil {
		return Upload{}, fmt.Errorf("close multipart: %w", err)
	}

	c.logger.Info("uploading session", "body_bytes", body.Len())
	var up Upload
	if err := c.do(ctx, "/api/session", mw.FormDataContentType(), &body, &up); err != nil {
		return Upload{}, err
	}
	if !up.OK {
		return up, fmt.Errorf("%w: %s", ErrUploadRejected, up.Message)
	}
	return up, nil
}

func writeImagePart(mw *multipart.Writer, field, filename string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(body), out)
}

func (c *HTTPClient) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
