package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"household-notify-go/internal/models"
)

func TestSaveSubscriptionIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k1", "a1")
		require.True(t, res.OK, res.Message)
	}

	assert.Equal(t, 1, s.SubscriptionCount(7, "https://push.example/ep1"))
}

func TestSaveSubscriptionUpdatesNotAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k1", "a1").OK)
	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k2", "a2").OK)

	assert.Equal(t, 1, s.SubscriptionCount(7, "https://push.example/ep1"))

	subs, err := s.SubscriptionsFor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256dh)
	assert.Equal(t, "a2", subs[0].Auth)
}

func TestSaveSubscriptionReplacesOtherEndpoints(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k1", "a1").OK)
	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep2", "k2", "a2").OK)

	subs, err := s.SubscriptionsFor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/ep2", subs[0].Endpoint)
}

func TestSaveSubscriptionRejectsMissingUser(t *testing.T) {
	s := NewMemoryStore()

	res := s.SaveSubscription(context.Background(), 0, "https://push.example/ep1", "k1", "a1")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotAuthenticated, res.Reason)
}

func TestHasSubscription(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.False(t, s.HasSubscription(ctx, 7))
	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k1", "a1").OK)
	assert.True(t, s.HasSubscription(ctx, 7))
}

func TestRemoveSubscriptionsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Removing a user with no rows is still success.
	assert.True(t, s.RemoveSubscriptions(ctx, 7).OK)

	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep1", "k1", "a1").OK)
	require.True(t, s.SaveSubscription(ctx, 7, "https://push.example/ep2", "k2", "a2").OK)

	// Unconditional on endpoint: every row for the user goes.
	assert.True(t, s.RemoveSubscriptions(ctx, 7).OK)
	assert.False(t, s.HasSubscription(ctx, 7))
}

func TestLoadEmailSettingsRepairsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		s.SeedEmailSettings(models.EmailSettings{
			ID:              id,
			Email:           "a@x.com",
			AutoSendEnabled: id == "2",
			AutoSendTime:    models.DefaultAutoSendTime,
		})
	}

	st, err := s.LoadEmailSettings(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "3", st.ID)
	assert.Equal(t, 1, s.SettingsRowCount("a@x.com"))
}

func TestLoadEmailSettingsNone(t *testing.T) {
	s := NewMemoryStore()

	st, err := s.LoadEmailSettings(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSaveThenLoadEmailSettings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveEmailSettings(ctx, "a@x.com", true))

	st, err := s.LoadEmailSettings(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.AutoSendEnabled)
	assert.Equal(t, models.DefaultAutoSendTime, st.AutoSendTime)

	// A second save replaces the row rather than accumulating.
	require.NoError(t, s.SaveEmailSettings(ctx, "a@x.com", false))
	st, err = s.LoadEmailSettings(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.AutoSendEnabled)
	assert.Equal(t, 1, s.SettingsRowCount("a@x.com"))
}

func TestDueEmailSettings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveEmailSettings(ctx, "on@x.com", true))
	require.NoError(t, s.SaveEmailSettings(ctx, "off@x.com", false))

	// Before the frozen send time nothing is due.
	before := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	due, err := s.DueEmailSettings(ctx, before)
	require.NoError(t, err)
	assert.Empty(t, due)

	// After it, only the enabled address.
	after := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	due, err = s.DueEmailSettings(ctx, after)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "on@x.com", due[0].Email)

	// Once stamped for the day it stops being due.
	require.NoError(t, s.MarkEmailSent(ctx, due[0].ID, after))
	due, err = s.DueEmailSettings(ctx, after)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestVapidKeysRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.VapidPublicKey(ctx)
	assert.ErrorIs(t, err, ErrKeyConfigMissing)

	require.NoError(t, s.SaveVapidKeys(ctx, "pub", "priv"))

	pub, err := s.VapidPublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pub", pub)

	pair, err := s.VapidKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, "priv", pair.PrivateKey)
}
