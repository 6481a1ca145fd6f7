// Package queue contains the background consumer that listens to the
// tweet.moderation queue and appends an audit trail to logs/moderation.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer drains ModerationEvent messages into an append-only log
// file under Dir.
type AuditConsumer struct {
	URL string
	Dir string
}

// Run connects to RabbitMQ, declares the moderation queue (durable) and
// consumes until ctx is cancelled.  Broker failures are retried with an
// exponential backoff capped at 30s, so the HTTP server keeps operating while
// the broker is down.
func (a AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			log.Warnf("moderation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("moderation-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (a AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warnf("moderation-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(ModerationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ModerationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handle(d.Body); err != nil {
				log.Errorf("moderation-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a AuditConsumer) handle(body []byte) error {
	var ev ModerationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", a.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(a.Dir, "moderation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return WriteAuditLine(f, ev)
}

// WriteAuditLine renders ev as one human-readable line.
func WriteAuditLine(w io.Writer, ev ModerationEvent) error {
	from := ev.FromStatus
	if from == "" {
		from = "-"
	}
	_, err := fmt.Fprintf(w, "[%s] tweet %s | tweet_id=%s | author_id=%s | actor_id=%s | actor_role=%s | status=%s->%s | sensitive=%t\n",
		ev.OccurredAt, ev.Action, ev.TweetID, ev.AuthorID, ev.ActorID, ev.ActorRole, from, ev.ToStatus, ev.IsSensitive)
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
