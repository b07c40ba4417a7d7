package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"taskforge/internal/model"
)

// KafkaPublisher fans ExecutionEvents out onto a Kafka topic, keyed by
// node id so a consumer can reconstruct per-node ordering. Optional:
// SPEC_FULL.md §B names this as a supplement to the primary line stream,
// not a replacement for it.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a Publisher writing to topic across brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e model.ExecutionEvent) error {
	b, err := json.Marshal(toFrame(e))
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.NodeID),
		Value: b,
	})
}

// Close releases the underlying Kafka writer's connections.
func (k *KafkaPublisher) Close() error { return k.writer.Close() }
