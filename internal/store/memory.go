package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"household-notify-go/internal/models"
)

// MemoryStore is an in-process implementation of the subscription,
// settings and key-config stores used by tests. It mirrors the
// PostgresStore semantics exactly, including the read-repair on
// duplicate settings rows.
type MemoryStore struct {
	mu       sync.Mutex
	subs     []models.PushSubscription
	settings []models.EmailSettings
	vapid    *models.VapidKeyPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSubscription(_ context.Context, userID int, endpoint, p256dh, auth string) Result {
	if userID == 0 {
		return Failure(ReasonNotAuthenticated, "no user for subscription")
	}
	if endpoint == "" || p256dh == "" || auth == "" {
		return Failure(ReasonBadInput, "subscription is missing endpoint or keys")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.subs {
		if s.subs[i].UserID == userID && s.subs[i].Endpoint == endpoint {
			s.subs[i].P256dh = p256dh
			s.subs[i].Auth = auth
			return Success("subscription saved")
		}
	}

	// New endpoint replaces the user's subscription wholesale; the table
	// never holds more than one row per user.
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.UserID != userID {
			kept = append(kept, sub)
		}
	}
	s.subs = append(kept, models.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now().UTC(),
	})
	return Success("subscription saved")
}

func (s *MemoryStore) RemoveSubscriptions(_ context.Context, userID int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.UserID != userID {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return Success("subscription removed")
}

func (s *MemoryStore) HasSubscription(_ context.Context, userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.UserID == userID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) SubscriptionsFor(_ context.Context, userID int) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []models.PushSubscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *MemoryStore) DeleteSubscriptionByEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

func (s *MemoryStore) SaveEmailSettings(_ context.Context, email string, autoSend bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.settings[:0]
	for _, st := range s.settings {
		if st.Email != email {
			kept = append(kept, st)
		}
	}
	s.settings = append(kept, models.EmailSettings{
		ID:              uuid.NewString(),
		Email:           email,
		AutoSendEnabled: autoSend,
		AutoSendTime:    models.DefaultAutoSendTime,
	})
	return nil
}

func (s *MemoryStore) LoadEmailSettings(_ context.Context, email string) (*models.EmailSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.EmailSettings
	for _, st := range s.settings {
		if st.Email == email {
			matched = append(matched, st)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	canonical := matched[len(matched)-1]

	if len(matched) > 1 {
		kept := s.settings[:0]
		for _, st := range s.settings {
			if st.Email != email || st.ID == canonical.ID {
				kept = append(kept, st)
			}
		}
		s.settings = kept
	}

	return &canonical, nil
}

func (s *MemoryStore) DueEmailSettings(_ context.Context, now time.Time) ([]models.EmailSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.Format("2006-01-02")
	clock := now.Format("15:04")

	var due []models.EmailSettings
	for _, st := range s.settings {
		if !st.AutoSendEnabled || st.AutoSendTime > clock {
			continue
		}
		if st.LastSentDate != nil && st.LastSentDate.Format("2006-01-02") >= today {
			continue
		}
		due = append(due, st)
	}
	return due, nil
}

func (s *MemoryStore) MarkEmailSent(_ context.Context, id string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.settings {
		if s.settings[i].ID == id {
			d := day
			s.settings[i].LastSentDate = &d
		}
	}
	return nil
}

func (s *MemoryStore) VapidPublicKey(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vapid == nil {
		return "", ErrKeyConfigMissing
	}
	return s.vapid.PublicKey, nil
}

func (s *MemoryStore) VapidKeys(_ context.Context) (models.VapidKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vapid == nil {
		return models.VapidKeyPair{}, ErrKeyConfigMissing
	}
	return *s.vapid, nil
}

func (s *MemoryStore) SaveVapidKeys(_ context.Context, publicKey, privateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vapid = &models.VapidKeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// SeedEmailSettings inserts a raw settings row without replacing
// existing rows for the email. Used to reproduce duplicate-row states.
func (s *MemoryStore) SeedEmailSettings(st models.EmailSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, st)
}

// SettingsRowCount reports the number of rows stored for the email.
func (s *MemoryStore) SettingsRowCount(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, st := range s.settings {
		if st.Email == email {
			n++
		}
	}
	return n
}

// SubscriptionCount reports the number of rows for (user, endpoint).
func (s *MemoryStore) SubscriptionCount(userID int, endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Endpoint == endpoint {
			n++
		}
	}
	return n
}
