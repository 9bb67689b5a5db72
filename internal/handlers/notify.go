package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"household-notify-go/internal/models"
)

// validateSharedSecret checks X-Notify-Signature against
// HMAC-SHA256(body, secret). If NOTIFY_WEBHOOK_SECRET is empty,
// validation is skipped (returns true).
func validateSharedSecret(r *http.Request) bool {
	secret := os.Getenv("NOTIFY_WEBHOOK_SECRET")
	if secret == "" {
		return true
	}
	sig := r.Header.Get("X-Notify-Signature")
	if sig == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body)) // restore for downstream handlers

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

// NotifyHandler accepts a dispatch request from a trusted caller and
// places it on the notification queue.
func (h *Handler) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !validateSharedSecret(r) {
		writeError(w, http.StatusUnauthorized, "bad signature")
		return
	}

	var req models.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	switch req.Channel {
	case models.ChannelPush:
		if len(req.Recipients) == 0 {
			writeError(w, http.StatusBadRequest, "push dispatch requires recipient user ids")
			return
		}
	case models.ChannelEmail:
		if len(req.Emails) == 0 {
			writeError(w, http.StatusBadRequest, "email dispatch requires addresses")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown channel")
		return
	}

	if err := h.Queue.Enqueue(r.Context(), req); err != nil {
		h.Log.Error("enqueue dispatch request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue notification")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// RecentNotificationsHandler returns the sent-history timeline.
func (h *Handler) RecentNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sent, err := h.Queue.RecentNotifications(r.Context(), limit)
	if err != nil {
		h.Log.Warn("recent notifications lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": sent,
		"count":         len(sent),
	})
}
