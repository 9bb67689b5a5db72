package handlers

import (
	"net/http"
	"os"

	"github.com/gorilla/sessions"
)

// The session cookie is written by the external identity provider; this
// service only reads the user id from it. The secret must match the
// provider's.
var (
	sessionStore = newSessionStore()
	sessionName  = "homehub-session"
)

func newSessionStore() *sessions.CookieStore {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret-key-change-in-production"
	}
	return sessions.NewCookieStore([]byte(secret))
}

// CurrentUserID returns the authenticated user's id, or false when the
// request carries no identity.
func CurrentUserID(r *http.Request) (int, bool) {
	session, _ := sessionStore.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int)
	if !ok || userID == 0 {
		return 0, false
	}
	return userID, true
}

// AuthMiddleware rejects requests without an authenticated user.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUserID(r); !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	}
}
