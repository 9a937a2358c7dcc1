// Package broker provides the durable at-least-once message queue behind
// the notification pipeline. Two interchangeable adapters implement the
// same contract: an in-process delay queue for development and tests, and
// a Redis Streams consumer group for production. Every published message
// eventually reaches Ack, a re-publish, or the dead-letter channel; the
// broker never silently drops one.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Payload is the envelope carried by every broker message. Attempt
// metadata survives requeues so the consumer can enforce the budget.
type Payload struct {
	OutboxID    string          `json:"outbox_id"`
	Kind        string          `json:"kind"`
	BookingID   string          `json:"booking_id"`
	RecipientID string          `json:"recipient_id"`
	Body        json.RawMessage `json:"body,omitempty"`

	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	CreatedAt   time.Time `json:"created_at"`
	NotBefore   time.Time `json:"not_before"`
}

// Message is a payload plus the adapter-assigned delivery id used for
// acking. Messages live only inside the broker.
type Message struct {
	ID      string
	Payload Payload
}

// Broker is the queue contract consumed by the notification worker.
type Broker interface {
	// Publish stamps attempt metadata and not_before = now + delay, then
	// enqueues the payload. Returns an opaque message id.
	Publish(ctx context.Context, p Payload, delay time.Duration) (string, error)

	// Read returns up to count messages whose not_before has passed,
	// blocking up to block when the queue is empty.
	Read(ctx context.Context, count int, block time.Duration) ([]Message, error)

	// Ack permanently removes a delivered message from the pending set.
	Ack(ctx context.Context, id string) error

	// Requeue re-publishes the payload (attempt metadata preserved, count
	// incremented) with a new delay and acks the original.
	Requeue(ctx context.Context, msg Message, delay time.Duration) (string, error)

	// DeadLetter copies the payload with a failure reason onto the
	// dead-letter channel and acks the original. Dead letters are only
	// inspected by operators, never replayed automatically.
	DeadLetter(ctx context.Context, msg Message, reason string) error

	// ClaimStale reassigns messages read but not acked within minIdle,
	// recovering work lost to a crashed consumer.
	ClaimStale(ctx context.Context, minIdle time.Duration, count int) ([]Message, error)

	// DeadLetterDepth reports how many messages sit on the dead-letter
	// channel.
	DeadLetterDepth(ctx context.Context) (int64, error)
}
