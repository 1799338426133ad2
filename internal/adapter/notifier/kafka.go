package notifier

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
)

// KafkaNotifier produces notifications onto a Kafka topic. The writer dials
// brokers lazily on the first produce and is reused for the run.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(cfg config.BrokerConfig) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Addr()),
			Topic:                  cfg.Queue,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, msg domain.NotificationMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	// Each message carries a unique key so consumers replaying the topic
	// can tell re-publications of the same logical report apart.
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("kafka produce to %s failed: %w", n.writer.Topic, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
