package domain

import (
	"encoding/json"
	"time"
)

// OutboxStatus tracks the delivery lifecycle of an outbox row.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEntry is a persisted intent-to-send row. Rows are created by the
// reminder scheduler or a booking-status transition and mutated only by the
// notification worker. They are never deleted; superseded rows for a
// re-booked slot are invalidated instead.
type OutboxEntry struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	BookingID   string          `json:"booking_id"`
	RecipientID string          `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
	Status      OutboxStatus    `json:"status"`
	Attempts    int             `json:"attempts"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DeliveryStatus tracks the state of a notification-log ledger row.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// LogEntry is the idempotency ledger row, unique on (kind, booking,
// recipient). At most one "sent" row may exist per key; that invariant is
// the de-duplication guard for the whole pipeline. The row is overwritten
// in place on subsequent attempts, never duplicated, and deleted only when
// the booking is released so a new recipient can claim the same booking id.
type LogEntry struct {
	Kind            Kind            `json:"kind"`
	BookingID       string          `json:"booking_id"`
	RecipientID     string          `json:"recipient_id"`
	Status          DeliveryStatus  `json:"status"`
	PayloadSnapshot json.RawMessage `json:"payload_snapshot"`
	Attempts        int             `json:"attempts"`
	LastError       *string         `json:"last_error,omitempty"`
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"`
	TemplateKey     string          `json:"template_key"`
	TemplateVersion int             `json:"template_version"`
}

// ReminderJob is a persisted future reminder instant, one row per
// (booking, kind). Rows drive crash recovery: on start every future row is
// re-armed, past-due or unresolvable rows are purged.
type ReminderJob struct {
	JobID       string    `json:"job_id"`
	BookingID   string    `json:"booking_id"`
	Kind        Kind      `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
