package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"household-notify-go/internal/models"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostgresStore(databaseURL string, log *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, log: log}, nil
}

// RunMigrations creates tables if they don't exist.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Subscription methods

func (s *PostgresStore) SaveSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) Result {
	if userID == 0 {
		return Failure(ReasonNotAuthenticated, "no user for subscription")
	}
	if endpoint == "" || p256dh == "" || auth == "" {
		return Failure(ReasonBadInput, "subscription is missing endpoint or keys")
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint,
	).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		// New endpoint: replace the user's subscription wholesale so the
		// table never holds more than one row per user.
		err = s.replaceSubscription(ctx, userID, endpoint, p256dh, auth)
	case err == nil:
		_, err = s.db.ExecContext(ctx,
			`UPDATE push_subscriptions SET p256dh = $1, auth = $2 WHERE id = $3`,
			p256dh, auth, id,
		)
	}

	if err != nil {
		s.log.Warn("save subscription failed", zap.Int("user_id", userID), zap.Error(err))
		return Failure(ReasonBackend, "could not save subscription")
	}
	return Success("subscription saved")
}

func (s *PostgresStore) replaceSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1`, userID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.NewString(), userID, endpoint, p256dh, auth,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) RemoveSubscriptions(ctx context.Context, userID int) Result {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1`, userID,
	); err != nil {
		s.log.Warn("remove subscriptions failed", zap.Int("user_id", userID), zap.Error(err))
		return Failure(ReasonBackend, "could not remove subscription")
	}
	return Success("subscription removed")
}

func (s *PostgresStore) HasSubscription(ctx context.Context, userID int) bool {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM push_subscriptions WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		// Fail open to "not subscribed"; the caller retries via save.
		s.log.Warn("subscription existence check failed", zap.Int("user_id", userID), zap.Error(err))
		return false
	}
	return exists
}

func (s *PostgresStore) SubscriptionsFor(ctx context.Context, userID int) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			continue
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *PostgresStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	return err
}

// Email settings methods

func (s *PostgresStore) SaveEmailSettings(ctx context.Context, email string, autoSend bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM email_settings WHERE email = $1`, email,
	); err != nil {
		return fmt.Errorf("clear settings for %s: %w", email, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO email_settings (id, email, auto_send_enabled, auto_send_time)
		 VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), email, autoSend, models.DefaultAutoSendTime,
	); err != nil {
		return fmt.Errorf("insert settings for %s: %w", email, err)
	}

	return tx.Commit()
}

func (s *PostgresStore) LoadEmailSettings(ctx context.Context, email string) (*models.EmailSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, auto_send_enabled, auto_send_time, last_sent_date
		 FROM email_settings WHERE email = $1 ORDER BY id ASC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", email, err)
	}
	defer rows.Close()

	var all []models.EmailSettings
	for rows.Next() {
		var st models.EmailSettings
		var lastSent sql.NullTime
		if err := rows.Scan(&st.ID, &st.Email, &st.AutoSendEnabled, &st.AutoSendTime, &lastSent); err != nil {
			return nil, fmt.Errorf("scan settings for %s: %w", email, err)
		}
		if lastSent.Valid {
			t := lastSent.Time
			st.LastSentDate = &t
		}
		all = append(all, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", email, err)
	}

	if len(all) == 0 {
		return nil, nil
	}

	canonical := all[len(all)-1]
	if len(all) > 1 {
		// Duplicate rows from a racing writer; repair on read.
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM email_settings WHERE email = $1 AND id <> $2`,
			email, canonical.ID,
		); err != nil {
			return nil, fmt.Errorf("dedupe settings for %s: %w", email, err)
		}
		s.log.Info("repaired duplicate email settings",
			zap.String("email", email), zap.Int("removed", len(all)-1))
	}

	return &canonical, nil
}

func (s *PostgresStore) DueEmailSettings(ctx context.Context, now time.Time) ([]models.EmailSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, auto_send_enabled, auto_send_time, last_sent_date
		 FROM email_settings
		 WHERE auto_send_enabled = TRUE
		   AND auto_send_time <= $1
		   AND (last_sent_date IS NULL OR last_sent_date < $2)`,
		now.Format("15:04"), now.Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.EmailSettings
	for rows.Next() {
		var st models.EmailSettings
		var lastSent sql.NullTime
		if err := rows.Scan(&st.ID, &st.Email, &st.AutoSendEnabled, &st.AutoSendTime, &lastSent); err != nil {
			continue
		}
		if lastSent.Valid {
			t := lastSent.Time
			st.LastSentDate = &t
		}
		due = append(due, st)
	}

	return due, rows.Err()
}

func (s *PostgresStore) MarkEmailSent(ctx context.Context, id string, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_settings SET last_sent_date = $1 WHERE id = $2`,
		day.Format("2006-01-02"), id,
	)
	return err
}

// VAPID key methods

func (s *PostgresStore) VapidPublicKey(ctx context.Context) (string, error) {
	pair, err := s.VapidKeys(ctx)
	if err != nil {
		return "", err
	}
	return pair.PublicKey, nil
}

func (s *PostgresStore) VapidKeys(ctx context.Context) (models.VapidKeyPair, error) {
	var pair models.VapidKeyPair
	err := s.db.QueryRowContext(ctx,
		`SELECT public_key, private_key, created_at FROM vapid_keys WHERE id = 1`,
	).Scan(&pair.PublicKey, &pair.PrivateKey, &pair.CreatedAt)

	if err == sql.ErrNoRows {
		return models.VapidKeyPair{}, ErrKeyConfigMissing
	}
	if err != nil {
		return models.VapidKeyPair{}, fmt.Errorf("load vapid keys: %w", err)
	}
	return pair, nil
}

func (s *PostgresStore) SaveVapidKeys(ctx context.Context, publicKey, privateKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vapid_keys (id, public_key, private_key, created_at)
		 VALUES (1, $1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET public_key = $1, private_key = $2`,
		publicKey, privateKey,
	)
	return err
}
