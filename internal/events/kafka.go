package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher delivers lifecycle events to a Kafka topic. Writes are
// fire-and-forget: a broker outage degrades to logging, never to a failed
// sync.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish serializes and writes one event, keyed by type so consumers
// see per-type ordering.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[KafkaPublisher] Failed to marshal event %s: %v", ev.Type, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.Type),
		Value: value,
		Time:  ev.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[KafkaPublisher] Failed to publish %s: %v", ev.Type, err)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
