package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"go.uber.org/zap"
)

// SaveEmailSettingsHandler replaces the auto-send settings for an email.
func (h *Handler) SaveEmailSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email           string `json:"email"`
		AutoSendEnabled bool   `json:"auto_send_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if err := h.Settings.SaveEmailSettings(r.Context(), req.Email, req.AutoSendEnabled); err != nil {
		h.Log.Warn("save email settings failed", zap.String("email", req.Email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetEmailSettingsHandler returns the settings for ?email=, 404 when none.
func (h *Handler) GetEmailSettingsHandler(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	st, err := h.Settings.LoadEmailSettings(r.Context(), email)
	if err != nil {
		h.Log.Warn("load email settings failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no settings for this email")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
