package push

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"household-notify-go/internal/keys"
	"household-notify-go/internal/store"
)

// DefaultScriptURL is the service script registered with the platform.
const DefaultScriptURL = "/static/sw.js"

// EncodedKeys is the subscription key material in standard base64, the
// form the subscription store persists.
type EncodedKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionResult is a successfully created subscription: the live
// platform handle plus its encoded keys.
type SubscriptionResult struct {
	Subscription PlatformSubscription
	Endpoint     string
	Keys         EncodedKeys
}

// Manager drives the subscription lifecycle for a single session:
// Unregistered -> Registered -> Subscribed -> Unsubscribed. The
// registration handle is requested once and reused; there is at most
// one live platform subscription per session, replaced on re-create.
//
// Manager never returns errors: every failure is logged, reported
// through the Notify hook, and surfaces as a nil result or false.
type Manager struct {
	platform  Platform
	keyConfig store.KeyConfigStore
	subs      store.SubscriptionStore
	userID    int
	scriptURL string
	log       *zap.Logger

	// Notify surfaces a user-facing message when an operation fails.
	Notify func(msg string)

	mu  sync.Mutex
	reg Registration
	sub PlatformSubscription
}

func NewManager(platform Platform, keyConfig store.KeyConfigStore, subs store.SubscriptionStore, userID int, log *zap.Logger) *Manager {
	m := &Manager{
		platform:  platform,
		keyConfig: keyConfig,
		subs:      subs,
		userID:    userID,
		scriptURL: DefaultScriptURL,
		log:       log,
	}
	m.Notify = func(msg string) {
		log.Info("user notice", zap.String("message", msg))
	}
	return m
}

// Create registers the platform (once), fetches the current VAPID public
// key, replaces any live platform subscription with a fresh one, and
// persists the encoded keys. Returns nil on any failure.
//
// The whole flow runs under the session mutex: concurrent calls share
// one registration request and serialize their subscribe steps, so the
// session can never accumulate more than one live subscription.
func (m *Manager) Create(ctx context.Context) *SubscriptionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.registration(ctx)
	if err != nil {
		m.fail("Notifications are unavailable on this device.", "platform registration failed", err)
		return nil
	}

	// Fetched on demand every time; the key may have been rotated.
	publicKey, err := m.keyConfig.VapidPublicKey(ctx)
	if err != nil {
		m.fail("Notifications are not configured yet.", "vapid public key unavailable", err)
		return nil
	}

	serverKey, err := keys.DecodeKey(publicKey)
	if err != nil {
		m.fail("Notifications are misconfigured.", "vapid public key malformed", err)
		return nil
	}

	// Replace, never accumulate: drop the live subscription first,
	// whether it is cached from this session or left over from an
	// earlier one.
	existing := m.sub
	if existing == nil {
		existing, err = reg.Subscription(ctx)
		if err != nil {
			m.fail("Could not enable notifications.", "existing subscription lookup failed", err)
			return nil
		}
	}
	if existing != nil {
		if err := existing.Unsubscribe(ctx); err != nil {
			m.fail("Could not enable notifications.", "unsubscribe of old subscription failed", err)
			return nil
		}
		m.sub = nil
	}

	sub, err := reg.Subscribe(ctx, serverKey)
	if err != nil {
		m.fail("Could not enable notifications.", "platform subscribe failed", err)
		return nil
	}

	encoded, err := encodeSubscriptionKeys(sub)
	if err != nil {
		m.fail("Could not enable notifications.", "subscription key extraction failed", err)
		return nil
	}

	if res := m.subs.SaveSubscription(ctx, m.userID, sub.Endpoint(), encoded.P256dh, encoded.Auth); !res.OK {
		m.fail("Could not save your notification settings.", "subscription save failed", nil)
		return nil
	}

	m.sub = sub
	return &SubscriptionResult{
		Subscription: sub,
		Endpoint:     sub.Endpoint(),
		Keys:         encoded,
	}
}

// Remove unsubscribes the cached platform subscription and deletes the
// user's stored rows. With nothing cached it returns true without
// touching the store.
func (m *Manager) Remove(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub == nil {
		return true
	}

	if err := m.sub.Unsubscribe(ctx); err != nil {
		m.fail("Could not disable notifications.", "platform unsubscribe failed", err)
		return false
	}
	m.sub = nil

	if res := m.subs.RemoveSubscriptions(ctx, m.userID); !res.OK {
		m.fail("Could not remove your notification settings.", "subscription removal failed", nil)
		return false
	}
	return true
}

// Subscribed reports whether this session holds a live subscription.
func (m *Manager) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

// Close tears down session state. The live subscription, if any, is
// unsubscribed best-effort; stored rows are left alone.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub != nil {
		if err := m.sub.Unsubscribe(ctx); err != nil {
			m.log.Warn("teardown unsubscribe failed", zap.Error(err))
		}
		m.sub = nil
	}
	m.reg = nil
}

func (m *Manager) registration(ctx context.Context) (Registration, error) {
	if m.reg != nil {
		return m.reg, nil
	}
	reg, err := m.platform.Register(ctx, m.scriptURL)
	if err != nil {
		return nil, err
	}
	m.reg = reg
	return reg, nil
}

func (m *Manager) fail(notice, logMsg string, err error) {
	m.log.Warn(logMsg, zap.Int("user_id", m.userID), zap.Error(err))
	m.Notify(notice)
}

func encodeSubscriptionKeys(sub PlatformSubscription) (EncodedKeys, error) {
	p256dh, err := sub.Key(KeyP256dh)
	if err != nil {
		return EncodedKeys{}, err
	}
	auth, err := sub.Key(KeyAuth)
	if err != nil {
		return EncodedKeys{}, err
	}
	return EncodedKeys{
		P256dh: keys.EncodeKey(p256dh),
		Auth:   keys.EncodeKey(auth),
	}, nil
}
