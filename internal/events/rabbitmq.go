package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecopickup/pooling/internal/domain"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes pool-formed events to a topic exchange with
// routing key "pool.formed" and persistent delivery.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
}

// DialRabbitPublisher connects to url, opens a channel and declares exchange
// as a durable topic exchange.
func DialRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events.DialRabbitPublisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events.DialRabbitPublisher: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events.DialRabbitPublisher: declare exchange %q: %w", exchange, err)
	}

	p := NewRabbitPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// NewRabbitPublisher constructs a RabbitPublisher over an already-open channel.
func NewRabbitPublisher(ch Channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

// PublishPoolFormed publishes ev as a persistent JSON message.
func (p *RabbitPublisher) PublishPoolFormed(ctx context.Context, ev domain.PoolFormed) error {
	body, err := encode(ev)
	if err != nil {
		return fmt.Errorf("events.RabbitPublisher.PublishPoolFormed: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, PoolFormedType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         PoolFormedType,
		Timestamp:    ev.PooledAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events.RabbitPublisher.PublishPoolFormed: %w", err)
	}
	return nil
}

// Close closes the channel and, when the publisher dialled it, the connection.
func (p *RabbitPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
