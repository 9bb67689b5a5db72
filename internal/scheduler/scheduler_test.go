package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"household-notify-go/internal/models"
	"household-notify-go/internal/store"
)

type queueSpy struct {
	mu   sync.Mutex
	reqs []models.DispatchRequest
}

func (q *queueSpy) Enqueue(_ context.Context, req models.DispatchRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reqs = append(q.reqs, req)
	return nil
}

func (q *queueSpy) RecordSent(context.Context, models.SentNotification) error { return nil }

func (q *queueSpy) RecentNotifications(context.Context, int) ([]models.SentNotification, error) {
	return nil, nil
}

func TestTickEnqueuesDueEmails(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, mem.SaveEmailSettings(ctx, "on@x.com", true))
	require.NoError(t, mem.SaveEmailSettings(ctx, "off@x.com", false))

	q := &queueSpy{}
	r := New(mem, q, zaptest.NewLogger(t))
	r.Now = func() time.Time {
		return time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	}

	n, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, q.reqs, 1)
	assert.Equal(t, models.ChannelEmail, q.reqs[0].Channel)
	assert.Equal(t, []string{"on@x.com"}, q.reqs[0].Emails)

	// The row was stamped: a second tick the same day enqueues nothing.
	n, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, q.reqs, 1)
}

func TestTickBeforeSendTime(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveEmailSettings(context.Background(), "on@x.com", true))

	q := &queueSpy{}
	r := New(mem, q, zaptest.NewLogger(t))
	r.Now = func() time.Time {
		return time.Date(2026, 8, 30, 7, 30, 0, 0, time.UTC)
	}

	n, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.reqs)
}
