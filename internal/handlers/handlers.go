package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"household-notify-go/internal/store"
)

// Pinger is a backend that can report liveness (database, queue).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Subs      store.SubscriptionStore
	Settings  store.SettingsStore
	KeyConfig store.KeyConfigStore
	Queue     store.NotifyQueue
	Backends  []Pinger
	Log       *zap.Logger
}

func NewHandler(subs store.SubscriptionStore, settings store.SettingsStore, keyConfig store.KeyConfigStore, queue store.NotifyQueue, log *zap.Logger) *Handler {
	return &Handler{
		Subs:      subs,
		Settings:  settings,
		KeyConfig: keyConfig,
		Queue:     queue,
		Log:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// HealthHandler pings the wired backends.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	for _, b := range h.Backends {
		if err := b.Ping(r.Context()); err != nil {
			h.Log.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
