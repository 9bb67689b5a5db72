package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"household-notify-go/internal/keys"
	"household-notify-go/internal/store"
)

// GetVAPIDKeyHandler returns the public VAPID key.
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	publicKey, err := h.KeyConfig.VapidPublicKey(r.Context())
	if err != nil {
		h.Log.Error("vapid public key unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": publicKey})
}

// SubscribePushHandler saves a push subscription for the current user.
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := CurrentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	// Key material arrives URL-safe from the platform; reject anything
	// malformed before it reaches the store.
	p256dh, err := keys.DecodeKey(req.Keys.P256dh)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed subscription keys")
		return
	}
	auth, err := keys.DecodeKey(req.Keys.Auth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed subscription keys")
		return
	}

	// Persist in standard base64, the same form the manager stores.
	res := h.Subs.SaveSubscription(r.Context(), userID, req.Endpoint, keys.EncodeKey(p256dh), keys.EncodeKey(auth))
	if !res.OK {
		status := http.StatusInternalServerError
		if res.Reason == store.ReasonBadInput {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UnsubscribePushHandler removes all of the current user's subscriptions.
func (h *Handler) UnsubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := CurrentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	res := h.Subs.RemoveSubscriptions(r.Context(), userID)
	if !res.OK {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PushStatusHandler reports whether the current user is subscribed.
func (h *Handler) PushStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := CurrentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"subscribed": h.Subs.HasSubscription(r.Context(), userID),
	})
}
