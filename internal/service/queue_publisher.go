package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/content-platform/internal/queue"
)

const dialTimeout = 3 * time.Second

// ModerationPublisher publishes tweet lifecycle events to RabbitMQ.
// Errors are logged and returned so callers can ignore failures without
// interrupting the main request flow.  An empty URL disables publishing.
type ModerationPublisher struct {
	URL string
}

// Publish sends event to the tweet.moderation queue.  The function never
// panics; messages are marked as persistent.
func (p ModerationPublisher) Publish(ctx context.Context, event q.ModerationEvent) error {
	if p.URL == "" {
		return nil
	}
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		log.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.ModerationQueueName, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	); err != nil {
		log.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.ModerationQueueName, false, false, pub); err != nil {
		log.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
