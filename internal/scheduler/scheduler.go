// Package scheduler enqueues the daily auto-send summary email for each
// address whose settings ask for it.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"household-notify-go/internal/models"
	"household-notify-go/internal/store"
)

var (
	mDue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_due_settings_total", Help: "Due email-settings rows fetched",
	})
	mEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_emails_enqueued_total", Help: "Summary emails enqueued",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_errors_total", Help: "Errors in scheduler ticks",
	})
)

type Runner struct {
	Settings store.SettingsStore
	Queue    store.NotifyQueue
	Log      *zap.Logger
	Interval time.Duration

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(settings store.SettingsStore, queue store.NotifyQueue, log *zap.Logger) *Runner {
	return &Runner{
		Settings: settings,
		Queue:    queue,
		Log:      log,
		Interval: time.Minute,
		Now:      time.Now,
	}
}

// Run ticks until ctx is done. Each tick gets its own deadline so a slow
// backend cannot pile ticks on top of each other.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := r.Tick(tickCtx); err != nil {
				mErrors.Inc()
				r.Log.Warn("scheduler tick failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Tick enqueues one summary email per due settings row and stamps the
// row so it is not picked up again today. Returns the enqueued count.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	now := r.Now()

	due, err := r.Settings.DueEmailSettings(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("fetch due settings: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	mDue.Add(float64(len(due)))

	enqueued := 0
	for _, st := range due {
		err := r.Queue.Enqueue(ctx, models.DispatchRequest{
			Channel: models.ChannelEmail,
			Emails:  []string{st.Email},
			Title:   "Your household summary",
			Body:    fmt.Sprintf("Daily summary for %s.", now.Format("Monday, January 2")),
		})
		if err != nil {
			mErrors.Inc()
			r.Log.Warn("enqueue summary email failed", zap.String("email", st.Email), zap.Error(err))
			continue
		}
		if err := r.Settings.MarkEmailSent(ctx, st.ID, now); err != nil {
			mErrors.Inc()
			r.Log.Warn("mark sent failed", zap.String("email", st.Email), zap.Error(err))
			continue
		}
		enqueued++
		mEnqueued.Inc()
	}

	r.Log.Debug("scheduled summary emails", zap.Int("due", len(due)), zap.Int("enqueued", enqueued))
	return enqueued, nil
}
