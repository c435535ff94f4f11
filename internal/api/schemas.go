package api

import (
	"time"

	"github.com/verte-zerg/tuibooth/internal/events"
	"github.com/verte-zerg/tuibooth/internal/model"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeS   int64  `json:"uptime_s"`
	MachineID string `json:"machine_id"`
}

type StatusResponse struct {
	Screen      string `json:"screen"`
	State       string `json:"state,omitempty"`
	Shots       int    `json:"shots"`
	Remaining   *int   `json:"remaining,omitempty"`
	LastWarning string `json:"last_warning,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Clients     int    `json:"clients"`
}

// SettingsResponse exposes the operator-editable settings.
type SettingsResponse struct {
	CameraSimulation  bool   `json:"camera_simulation"`
	PrinterSimulation bool   `json:"printer_simulation"`
	InvertCamera      bool   `json:"invert_camera"`
	CountdownSeconds  int    `json:"countdown_seconds"`
	WebcamIndex       int    `json:"webcam_index"`
	Printer           string `json:"printer"`
	PrinterStrip      string `json:"printer_strip"`
	Printer4R         string `json:"printer_4r"`
	PrintSettleS      int    `json:"print_settle_s"`
}

// SettingsPatch carries the fields to change. Absent fields are kept.
type SettingsPatch struct {
	CameraSimulation  *bool   `json:"camera_simulation"`
	PrinterSimulation *bool   `json:"printer_simulation"`
	InvertCamera      *bool   `json:"invert_camera"`
	CountdownSeconds  *int    `json:"countdown_seconds"`
	WebcamIndex       *int    `json:"webcam_index"`
	Printer           *string `json:"printer"`
	PrinterStrip      *string `json:"printer_strip"`
	Printer4R         *string `json:"printer_4r"`
	PrintSettleS      *int    `json:"print_settle_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func StatusToResponse(st events.Status, clients int) StatusResponse {
	resp := StatusResponse{
		Screen:      st.Screen,
		State:       st.State,
		Shots:       st.Shots,
		Remaining:   st.Remaining,
		LastWarning: st.LastWarning,
		Clients:     clients,
	}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = st.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func SettingsToResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		CameraSimulation:  s.CameraSimulation,
		PrinterSimulation: s.PrinterSimulation,
		InvertCamera:      s.InvertCamera,
		CountdownSeconds:  s.CountdownSeconds,
		WebcamIndex:       s.WebcamIndex,
		Printer:           s.Printer,
		PrinterStrip:      s.PrinterStrip,
		Printer4R:         s.Printer4R,
		PrintSettleS:      s.PrintSettleS,
	}
}

// Validate rejects values the kiosk cannot run with.
func (p SettingsPatch) Validate() string {
	if p.CountdownSeconds != nil && (*p.CountdownSeconds < 1 || *p.CountdownSeconds > 30) {
		return "countdown_seconds must be between 1 and 30"
	}
	if p.WebcamIndex != nil && *p.WebcamIndex < 0 {
		return "webcam_index must not be negative"
	}
	if p.PrintSettleS != nil && *p.PrintSettleS < 0 {
		return "print_settle_s must not be negative"
	}
	return ""
}

// Apply copies the present fields onto s.
func (p SettingsPatch) Apply(s *model.Settings) {
	if p.CameraSimulation != nil {
		s.CameraSimulation = *p.CameraSimulation
	}
	if p.PrinterSimulation != nil {
		s.PrinterSimulation = *p.PrinterSimulation
	}
	if p.InvertCamera != nil {
		s.InvertCamera = *p.InvertCamera
	}
	if p.CountdownSeconds != nil {
		s.CountdownSeconds = *p.CountdownSeconds
	}
	if p.WebcamIndex != nil {
		s.WebcamIndex = *p.WebcamIndex
	}
	if p.Printer != nil {
		s.Printer = *p.Printer
	}
	if p.PrinterStrip != nil {
		s.PrinterStrip = *p.PrinterStrip
	}
	if p.Printer4R != nil {
		s.Printer4R = *p.Printer4R
	}
	if p.PrintSettleS != nil {
		s.PrintSettleS = *p.PrintSettleS
	}
}
