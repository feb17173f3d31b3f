package queue

import (
	"context"       // publish deadline
	"encoding/json" // event body
	"fmt"
	"sync" // guards the shared channel
	"time"

	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"go.uber.org/zap"                     // structured logging
)

// ReservationQueue is the durable queue carrying lifecycle events.
const ReservationQueue = "reservation.events"

// NopPublisher discards events.  It is used when EVENTS_ENABLED is false and
// in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

// Publisher sends events to RabbitMQ as persistent messages on the default
// exchange.  The connection is opened on first use and re-dialled after any
// failure, so a broker outage never blocks startup.
type Publisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex       // amqp channels are not safe for concurrent use
	conn *amqp.Connection // nil until first Publish
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// Publish marshals ev and sends it to ReservationQueue.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	// Encode outside the lock.
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err // broker down; the caller logs and moves on
	}
	err = p.ch.PublishWithContext(ctx,
		"",               // default exchange
		ReservationQueue, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // survive a broker restart
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type, // lets consumers route without decoding
			MessageId:    ev.ReservationID,
			Body:         body,
		},
	)
	if err != nil {
		p.reset() // force a fresh dial next time
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// ensureChannel must be called with mu held.
func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil // reuse the open channel
	}
	p.reset() // drop half-open state before redialing
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable, not auto-deleted, not exclusive, no-wait off
	if _, err := ch.QueueDeclare(ReservationQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Info("rabbitmq publisher connected", zap.String("queue", ReservationQueue))
	return nil
}

// reset must be called with mu held.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
