// Package dispatch delivers rendered notification bodies to recipients
// over web push and the outbound mailer endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"household-notify-go/internal/models"
	"household-notify-go/internal/store"
)

const pushTTL = 30 // seconds the push service may hold an undelivered message

// MailerConfig points at the outbound email function: an authenticated
// HTTPS endpoint accepting {to, subject, body}.
type MailerConfig struct {
	URL   string
	Token string
}

type Dispatcher struct {
	subs      store.SubscriptionStore
	keyConfig store.KeyConfigStore
	history   store.NotifyQueue
	mailer    MailerConfig
	client    *http.Client
	// Subscriber is the contact address sent with VAPID headers.
	Subscriber string
	log        *zap.Logger
}

func NewDispatcher(subs store.SubscriptionStore, keyConfig store.KeyConfigStore, history store.NotifyQueue, mailer MailerConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		subs:       subs,
		keyConfig:  keyConfig,
		history:    history,
		mailer:     mailer,
		client:     &http.Client{Timeout: 10 * time.Second},
		Subscriber: "mailto:admin@example.com",
		log:        log,
	}
}

// Dispatch delivers one request to all its recipients. Per-recipient
// failures are recorded and counted but do not abort the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.DispatchRequest) {
	dispatchRequests.WithLabelValues(req.Channel).Inc()

	switch req.Channel {
	case models.ChannelPush:
		for _, userID := range req.Recipients {
			d.sendPush(ctx, userID, req)
		}
	case models.ChannelEmail:
		for _, addr := range req.Emails {
			d.sendEmail(ctx, addr, req)
		}
	default:
		d.log.Warn("dropping request with unknown channel", zap.String("channel", req.Channel))
	}
}

// Run consumes dispatch requests from the queue until ctx is done. Each
// request gets its own delivery deadline so a hung push service or
// mailer cannot stall the worker.
func (d *Dispatcher) Run(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var req models.DispatchRequest
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
				d.log.Warn("dropping malformed dispatch request", zap.Error(err))
				continue
			}
			reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			d.Dispatch(reqCtx, req)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) sendPush(ctx context.Context, userID int, req models.DispatchRequest) {
	pair, err := d.keyConfig.VapidKeys(ctx)
	if err != nil {
		d.log.Error("push dispatch without vapid keys", zap.Error(err))
		pushSends.WithLabelValues("failed").Inc()
		return
	}

	subs, err := d.subs.SubscriptionsFor(ctx, userID)
	if err != nil {
		d.log.Warn("failed to load subscriptions", zap.Int("user_id", userID), zap.Error(err))
		pushSends.WithLabelValues("failed").Inc()
		return
	}

	payload, _ := json.Marshal(map[string]string{"title": req.Title, "body": req.Body})

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
			HTTPClient:      d.client,
			Subscriber:      d.Subscriber,
			VAPIDPublicKey:  pair.PublicKey,
			VAPIDPrivateKey: pair.PrivateKey,
			TTL:             pushTTL,
		})
		if err != nil {
			d.log.Warn("push send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			pushSends.WithLabelValues("failed").Inc()
			d.record(ctx, models.ChannelPush, strconv.Itoa(userID), req.Title, false, err.Error())
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// The push service no longer knows the endpoint; prune it.
			if err := d.subs.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
				d.log.Warn("failed to prune dead endpoint", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
			pushSends.WithLabelValues("pruned").Inc()
			d.record(ctx, models.ChannelPush, strconv.Itoa(userID), req.Title, false, "endpoint gone")
		case resp.StatusCode >= 400:
			pushSends.WithLabelValues("failed").Inc()
			d.record(ctx, models.ChannelPush, strconv.Itoa(userID), req.Title, false, resp.Status)
		default:
			pushSends.WithLabelValues("ok").Inc()
			d.record(ctx, models.ChannelPush, strconv.Itoa(userID), req.Title, true, "")
		}
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, to string, req models.DispatchRequest) {
	body, _ := json.Marshal(map[string]string{
		"to":      to,
		"subject": req.Title,
		"body":    req.Body,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.mailer.URL, bytes.NewReader(body))
	if err != nil {
		emailSends.WithLabelValues("failed").Inc()
		d.record(ctx, models.ChannelEmail, to, req.Title, false, err.Error())
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.mailer.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.mailer.Token)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.log.Warn("email send failed", zap.String("to", to), zap.Error(err))
		emailSends.WithLabelValues("failed").Inc()
		d.record(ctx, models.ChannelEmail, to, req.Title, false, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.log.Warn("mailer rejected message", zap.String("to", to), zap.String("status", resp.Status))
		emailSends.WithLabelValues("failed").Inc()
		d.record(ctx, models.ChannelEmail, to, req.Title, false, fmt.Sprintf("mailer returned %s", resp.Status))
		return
	}

	emailSends.WithLabelValues("ok").Inc()
	d.record(ctx, models.ChannelEmail, to, req.Title, true, "")
}

func (d *Dispatcher) record(ctx context.Context, channel, recipient, title string, delivered bool, errMsg string) {
	if d.history == nil {
		return
	}
	err := d.history.RecordSent(ctx, models.SentNotification{
		Channel:   channel,
		Recipient: recipient,
		Title:     title,
		Delivered: delivered,
		Error:     errMsg,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		d.log.Warn("failed to record sent notification", zap.Error(err))
	}
}
