// Package kafkabus produces lifecycle events to a Kafka topic for downstream
// consumers. Records are keyed by entity id so events for one user or request
// stay ordered within a partition.
package kafkabus

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"lifeline/internal/notify"
)

// Producer is the subset of *kgo.Client the bus needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Bus writes events to one topic.
type Bus struct {
	producer Producer
	topic    string
}

// New creates a bus producing to topic.
func New(producer Producer, topic string) *Bus {
	return &Bus{producer: producer, topic: topic}
}

// Publish produces the event and waits for the broker acknowledgement.
func (b *Bus) Publish(ctx context.Context, event notify.Event) error {
	payload, err := notify.Encode(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Name, err)
	}
	record := &kgo.Record{
		Topic: b.topic,
		Key:   []byte(event.Key),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(event.Name)},
		},
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce %s: %w", event.Name, err)
	}
	return nil
}
