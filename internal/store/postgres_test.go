package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newIntegrationStore connects to TEST_DATABASE_URL, or skips when no
// database is available.
func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := NewPostgresStore(url, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.RunMigrations(context.Background()))
	return s
}

func TestPostgresSubscriptionLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	const userID = 990001

	t.Cleanup(func() { s.RemoveSubscriptions(ctx, userID) })

	assert.False(t, s.HasSubscription(ctx, userID))

	require.True(t, s.SaveSubscription(ctx, userID, "https://push.example/it-ep1", "k1", "a1").OK)
	require.True(t, s.SaveSubscription(ctx, userID, "https://push.example/it-ep1", "k2", "a2").OK)
	assert.True(t, s.HasSubscription(ctx, userID))

	subs, err := s.SubscriptionsFor(ctx, userID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256dh)

	require.True(t, s.RemoveSubscriptions(ctx, userID).OK)
	assert.False(t, s.HasSubscription(ctx, userID))
	assert.True(t, s.RemoveSubscriptions(ctx, userID).OK)
}

func TestPostgresEmailSettingsRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	const email = "integration@x.test"

	require.NoError(t, s.SaveEmailSettings(ctx, email, true))
	require.NoError(t, s.SaveEmailSettings(ctx, email, false))

	st, err := s.LoadEmailSettings(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.AutoSendEnabled)
}
