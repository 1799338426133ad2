// Package notifier implements the pluggable per-report notification
// backends. All variants publish the exact same JSON payload, so downstream
// consumers never care which broker carried it.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// New selects the backend named in configuration. The selection happens
// once at startup; the sync driver only ever sees ports.Notifier.
func New(cfg *config.Config) (ports.Notifier, error) {
	switch cfg.Reports.Notifier {
	case config.NotifierNone:
		return Noop{}, nil
	case config.NotifierStomp:
		return NewStompNotifier(cfg.Stomp), nil
	case config.NotifierRedis:
		return NewRedisNotifier(cfg.Redis), nil
	case config.NotifierKafka:
		return NewKafkaNotifier(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("unknown notifier type %q", cfg.Reports.Notifier)
	}
}

// Encode serializes the shared wire payload.
func Encode(msg domain.NotificationMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return payload, nil
}

// Noop is the "none" backend: every publish succeeds without touching the
// network.
type Noop struct{}

func (Noop) Publish(ctx context.Context, msg domain.NotificationMessage) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
