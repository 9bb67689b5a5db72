package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"household-notify-go/internal/models"
)

const (
	notifyChannel = "notify:requests"
	historyKey    = "notify:sent:%d"
	historyNextID = "notify:sent:next_id"
	historyLine   = "notify:timeline"
	historyTTL    = 30 * 24 * time.Hour // 30 days
)

// RedisQueue carries dispatch requests over pub/sub and keeps a TTL'd
// timeline of delivery outcomes.
type RedisQueue struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisQueue(opts *redis.Options, log *zap.Logger) *RedisQueue {
	return &RedisQueue{client: redis.NewClient(opts), log: log}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, req models.DispatchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return q.client.Publish(ctx, notifyChannel, data).Err()
}

// Subscribe returns the pub/sub handle the dispatch worker consumes.
func (q *RedisQueue) Subscribe(ctx context.Context) *redis.PubSub {
	return q.client.Subscribe(ctx, notifyChannel)
}

func (q *RedisQueue) RecordSent(ctx context.Context, n models.SentNotification) error {
	id, err := q.client.Incr(ctx, historyNextID).Result()
	if err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(historyKey, id)

	pipe := q.client.Pipeline()
	pipe.Set(ctx, key, data, historyTTL)
	pipe.ZAdd(ctx, historyLine, redis.Z{
		Score:  float64(n.SentAt.Unix()),
		Member: key,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) RecentNotifications(ctx context.Context, limit int) ([]models.SentNotification, error) {
	if limit <= 0 {
		limit = 50
	}

	keys, err := q.client.ZRevRange(ctx, historyLine, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	var sent []models.SentNotification
	for _, key := range keys {
		val, err := q.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Entry expired, drop it from the timeline.
			q.log.Debug("pruning expired history entry", zap.String("key", key))
			q.client.ZRem(ctx, historyLine, key)
			continue
		} else if err != nil {
			continue
		}

		var n models.SentNotification
		if err := json.Unmarshal([]byte(val), &n); err == nil {
			sent = append(sent, n)
		}
	}
	return sent, nil
}
