package store

import (
	"context"
	"errors"
	"time"

	"household-notify-go/internal/models"
)

// ErrKeyConfigMissing means no VAPID key pair is configured; subscription
// creation cannot proceed until one is generated and saved.
var ErrKeyConfigMissing = errors.New("vapid key configuration missing")

// FailureReason classifies why a store mutation failed, so callers keep
// diagnostics without the store ever raising across the boundary.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonBackend          FailureReason = "backend"
	ReasonBadInput         FailureReason = "bad_input"
	ReasonNotAuthenticated FailureReason = "not_authenticated"
)

// Result is the outcome of a subscription mutation: success, or a typed
// failure with a human-readable message.
type Result struct {
	OK      bool          `json:"ok"`
	Reason  FailureReason `json:"reason,omitempty"`
	Message string        `json:"message"`
}

func Success(msg string) Result {
	return Result{OK: true, Message: msg}
}

func Failure(reason FailureReason, msg string) Result {
	return Result{OK: false, Reason: reason, Message: msg}
}

// SubscriptionStore persists push subscriptions (PostgreSQL).
//
// Removal is keyed on user id alone, not (user, endpoint): the system
// keeps at most one subscription per user, so the last device to
// subscribe wins and earlier devices are silently invalidated.
type SubscriptionStore interface {
	// SaveSubscription updates the key fields of an existing
	// (user, endpoint) row in place; a new endpoint replaces the user's
	// rows wholesale, keeping at most one row per user. Backend failures
	// are converted to a failure Result, never an error.
	SaveSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) Result

	// RemoveSubscriptions deletes every subscription row for the user.
	// Removing a user with no rows is success.
	RemoveSubscriptions(ctx context.Context, userID int) Result

	// HasSubscription reports whether the user has any subscription.
	// Backend errors fail open to false.
	HasSubscription(ctx context.Context, userID int) bool

	// SubscriptionsFor returns the user's subscription rows for delivery.
	SubscriptionsFor(ctx context.Context, userID int) ([]models.PushSubscription, error)

	// DeleteSubscriptionByEndpoint prunes a single row, used when a push
	// service reports the endpoint gone.
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// SettingsStore persists per-email auto-send preferences.
type SettingsStore interface {
	// SaveEmailSettings replaces the settings row for the email with a
	// single new row pinned to models.DefaultAutoSendTime.
	SaveEmailSettings(ctx context.Context, email string, autoSend bool) error

	// LoadEmailSettings returns the settings for the email, or nil when
	// none exist. Duplicate rows are repaired on read: the row with the
	// lexicographically last id survives, the rest are deleted.
	LoadEmailSettings(ctx context.Context, email string) (*models.EmailSettings, error)

	// DueEmailSettings returns enabled rows whose send time has passed
	// today and which have not been sent today.
	DueEmailSettings(ctx context.Context, now time.Time) ([]models.EmailSettings, error)

	// MarkEmailSent stamps last_sent_date for the row.
	MarkEmailSent(ctx context.Context, id string, day time.Time) error
}

// KeyConfigStore holds the single-row VAPID key configuration. The
// public key is fetched on demand and never cached by callers.
type KeyConfigStore interface {
	VapidPublicKey(ctx context.Context) (string, error)
	VapidKeys(ctx context.Context) (models.VapidKeyPair, error)
	SaveVapidKeys(ctx context.Context, publicKey, privateKey string) error
}

// NotifyQueue carries dispatch requests from producers (handlers,
// scheduler) to the dispatch worker, and keeps the sent history (Redis).
type NotifyQueue interface {
	Enqueue(ctx context.Context, req models.DispatchRequest) error
	RecordSent(ctx context.Context, n models.SentNotification) error
	RecentNotifications(ctx context.Context, limit int) ([]models.SentNotification, error)
}
