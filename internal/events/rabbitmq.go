package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"campusfeed/internal/middleware"
	"campusfeed/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the fanout exchange every event is written to.
const ExchangeName = "campusfeed.events"

const publishTimeout = 5 * time.Second

// RabbitMQPublisher writes events to a durable fanout exchange.
type RabbitMQPublisher struct {
	url string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQPublisher dials url and declares the exchange.
func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}

	p.conn = conn
	p.channel = ch
	return nil
}

// Publish marshals event and writes it with event.Type as the routing key.
// A closed connection is redialed once.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			observability.EventsPublished.WithLabelValues(event.Type, "error").Inc()
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
		},
	)
	if err != nil {
		observability.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	observability.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

// Close shuts the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			middleware.Logger.Debug("close amqp channel", "error", err)
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

// Emit publishes event and logs a failure instead of returning it. The
// caller's cancellation does not abort the publish.
func Emit(ctx context.Context, pub Publisher, event Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish domain event", "type", event.Type, "error", err)
	}
}
