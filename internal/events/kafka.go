package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ecopickup/pooling/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
// Tests substitute a fake.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per formed pool, keyed by the first
// request id so a pool's events stay on one partition.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

// NewKafkaPublisher constructs a KafkaPublisher over w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// PublishPoolFormed writes ev to the configured topic.
func (p *KafkaPublisher) PublishPoolFormed(ctx context.Context, ev domain.PoolFormed) error {
	body, err := encode(ev)
	if err != nil {
		return fmt.Errorf("events.KafkaPublisher.PublishPoolFormed: %w", err)
	}

	msg := kafka.Message{
		Value: body,
		Time:  ev.PooledAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(PoolFormedType)},
		},
	}
	if len(ev.RequestIDs) > 0 {
		msg.Key = []byte(ev.RequestIDs[0].String())
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events.KafkaPublisher.PublishPoolFormed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
