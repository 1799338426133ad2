package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
)

// RedisNotifier pushes notifications onto a Redis list. The underlying
// client dials lazily on the first command and pools the connection for the
// rest of the run.
type RedisNotifier struct {
	queue  string
	client *redis.Client
}

func NewRedisNotifier(cfg config.BrokerConfig) *RedisNotifier {
	return &RedisNotifier{
		queue: cfg.Queue,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
		}),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, msg domain.NotificationMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := n.client.RPush(ctx, n.queue, payload).Err(); err != nil {
		return fmt.Errorf("redis rpush to %s failed: %w", n.queue, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
