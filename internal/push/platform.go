// Package push manages the lifecycle of a platform push subscription for
// one client session: register once, subscribe against the current VAPID
// public key, and persist the encoded key material.
package push

import "context"

// Key names a platform subscription exposes.
const (
	KeyP256dh = "p256dh"
	KeyAuth   = "auth"
)

// Platform is the push-registration API of the client runtime.
type Platform interface {
	// Register installs the service script and returns a ready
	// registration handle.
	Register(ctx context.Context, scriptURL string) (Registration, error)
}

// Registration is a ready platform registration.
type Registration interface {
	// Subscription returns the currently live subscription, or nil when
	// there is none.
	Subscription(ctx context.Context) (PlatformSubscription, error)

	// Subscribe creates a new subscription scoped to the given
	// application server key (raw VAPID public key bytes).
	Subscribe(ctx context.Context, applicationServerKey []byte) (PlatformSubscription, error)
}

// PlatformSubscription is a live push subscription handle.
type PlatformSubscription interface {
	Endpoint() string

	// Key returns the raw key material for KeyP256dh or KeyAuth.
	Key(name string) ([]byte, error)

	Unsubscribe(ctx context.Context) error
}
