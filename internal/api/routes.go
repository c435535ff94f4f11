// Package api serves the local operator HTTP API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/tuibooth/internal/events"
	"github.com/verte-zerg/tuibooth/internal/model"
)

// DefaultHeartbeat is the idle interval between SSE comments.
const DefaultHeartbeat = 30 * time.Second

// SettingsStore reads and persists kiosk settings.
type SettingsStore interface {
	Get() model.Settings
	Update(fn func(*model.Settings)) (model.Settings, error)
}

// ServerConfig holds handler dependencies. Metrics and Settings may be nil.
type ServerConfig struct {
	Logger      *slog.Logger
	Broadcaster *events.Broadcaster
	Metrics     http.Handler
	Settings    SettingsStore
	MachineID   string
	Version     string
	StartTime   time.Time
	Heartbeat   time.Duration
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/healthz", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/events", eventsHandler(cfg))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Settings != nil {
		r.Get("/settings", getSettingsHandler(cfg))
		r.Patch("/settings", patchSettingsHandler(cfg))
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   cfg.Version,
			UptimeS:   int64(time.Since(cfg.StartTime).Seconds()),
			MachineID: cfg.MachineID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, StatusToResponse(cfg.Broadcaster.Status(), cfg.Broadcaster.Clients()))
	}
}

func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming not supported", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch, unsub := cfg.Broadcaster.Subscribe()
		defer unsub()

		_, _ = w.Write([]byte(": connected\n\n"))
		flusher.Flush()

		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = w.Write([]byte("data: " + msg + "\n\n"))
				flusher.Flush()
			case <-ticker.C:
				_, _ = w.Write([]byte(": heartbeat\n\n"))
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SettingsToResponse(cfg.Settings.Get()))
	}
}

func patchSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch SettingsPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
			return
		}
		if msg := patch.Validate(); msg != "" {
			WriteError(w, http.StatusBadRequest, msg, "INVALID_REQUEST")
			return
		}

		updated, err := cfg.Settings.Update(patch.Apply)
		if err != nil {
			cfg.Logger.Error("failed to save settings", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to save settings", "INTERNAL_ERROR")
			return
		}
		cfg.Logger.Info("settings updated via api")
		WriteJSON(w, http.StatusOK, SettingsToResponse(updated))
	}
}
