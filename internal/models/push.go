package models

import "time"

type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string    `json:"keys_auth"`   // Mapped from keys.auth
	CreatedAt time.Time `json:"created_at"`
}

// VapidKeyPair is the single-row server key configuration. Only the
// public key is ever served to clients.
type VapidKeyPair struct {
	PublicKey  string    `json:"public_key"`
	PrivateKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
