package queue

import (
	"context"       // shutdown signal
	"encoding/json" // event decoding
	"errors"
	"fmt"
	"os"            // audit file
	"path/filepath" // create the log directory
	"time"          // backoff and timestamps

	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"go.uber.org/zap"                     // structured logging
)

// AuditConsumer appends one line per reservation event to a log file.  The
// file is the audit trail of every lifecycle transition.
type AuditConsumer struct {
	url     string      // broker URL
	logPath string      // AUDIT_LOG_PATH
	log     *zap.Logger // operational log, not the audit trail
}

// NewAuditConsumer returns a consumer writing to logPath.
func NewAuditConsumer(url, logPath string, log *zap.Logger) *AuditConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditConsumer{url: url, logPath: logPath, log: log}
}

// Run consumes ReservationQueue until ctx is cancelled, reconnecting with
// exponential backoff whenever the broker goes away.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second // doubled per failed dial, capped near 30s
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("audit consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // connected; reset for the next outage

		// consume blocks until the channel or connection drops.
		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("audit consumer loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// At most 50 unacked deliveries in flight.
	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("audit consumer qos", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ReservationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	// Manual ack: a message is only acked once it is on disk.
	msgs, err := ch.ConsumeWithContext(ctx, ReservationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.Error("audit consumer handle message", zap.Error(err))
			_ = d.Nack(false, false) // no requeue, avoids a poison message loop
			continue
		}
		_ = d.Ack(false) // written, safe to drop from the queue
	}
	// msgs closes on ctx cancel or when the broker goes away.
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends it to the audit log.
func (c *AuditConsumer) Handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	// Append only; the file is never rewritten.
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ReservationEvent) string {
	line := fmt.Sprintf("[%s] %s | reservation_id=%s | venue_id=%s | venue=%q | user_id=%s | date_time=%s | party_size=%d | status=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ReservationID, ev.VenueID, ev.VenueName,
		ev.UserID, ev.DateTime.UTC().Format(time.RFC3339), ev.PartySize, ev.Status)
	// Optional fields are appended only when set.
	if ev.Invitees > 0 {
		line += fmt.Sprintf(" | invitees=%d", ev.Invitees)
	}
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	return line + "\n"
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
