package repository

import (
	"context"
	"time"

	"github.com/hireloop/interview-notifier/internal/domain"
)

// OutboxRepository persists intent-to-send rows. Rows are created by the
// reminder scheduler and booking transitions and mutated only by the
// notification worker. Claiming is atomic: two workers cannot both win the
// same row.
type OutboxRepository interface {
	Create(ctx context.Context, e *domain.OutboxEntry) error
	GetByID(ctx context.Context, id string) (*domain.OutboxEntry, error)

	// ClaimDue atomically claims up to limit rows with status=pending and
	// next_retry_at <= now, ordered by due time. Claimed rows have their
	// next_retry_at pushed out by lease so a crashed worker's claim
	// expires on its own.
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxEntry, error)

	// ClaimByID claims one specific row under the same conditions as
	// ClaimDue. The broker consumer uses it so a row announced on the
	// broker and simultaneously due for a poll can only be processed by
	// whichever path wins the claim. Returns domain.ErrNotClaimed when the
	// row exists but is resolved, not yet due, or leased elsewhere, and
	// domain.ErrNotFound when there is no such row.
	ClaimByID(ctx context.Context, id string, lease time.Duration) (*domain.OutboxEntry, error)

	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	ScheduleRetry(ctx context.Context, id string, attempts int, nextRetry time.Time, lastErr string) error

	// InvalidateForBooking terminally fails every still-pending row for a
	// released booking. Rows are never deleted; the audit trail stays.
	InvalidateForBooking(ctx context.Context, bookingID string) error

	CountPending(ctx context.Context) (int, error)
}

// LogRepository is the idempotency ledger, unique on (kind, booking,
// recipient). It is the single source of truth for "was this already sent".
type LogRepository interface {
	Get(ctx context.Context, kind domain.Kind, bookingID, recipientID string) (*domain.LogEntry, error)

	// UpsertPending creates or overwrites the ledger row with
	// delivery_status=pending before a send attempt. A row already marked
	// sent is left untouched; a concurrent duplicate insert is the
	// success path, not an error.
	UpsertPending(ctx context.Context, e *domain.LogEntry) error

	MarkSent(ctx context.Context, kind domain.Kind, bookingID, recipientID string) error
	MarkFailed(ctx context.Context, kind domain.Kind, bookingID, recipientID string, attempts int, lastErr string) error

	// DeleteForBooking removes every ledger row for a released booking so
	// a new recipient can acquire a fresh delivery record for the id.
	DeleteForBooking(ctx context.Context, bookingID string) error
}

// ReminderJobRepository persists future reminder instants for crash
// recovery.
type ReminderJobRepository interface {
	Create(ctx context.Context, job *domain.ReminderJob) error
	ListFuture(ctx context.Context, now time.Time) ([]*domain.ReminderJob, error)
	ListPast(ctx context.Context, now time.Time) ([]*domain.ReminderJob, error)
	Purge(ctx context.Context, jobID string) error
	DeleteForBooking(ctx context.Context, bookingID string) error

	// FireReminder consumes a job and enqueues its outbox entry in one
	// transaction: the job row is deleted (RETURNING) and the outbox row
	// inserted only when the delete hit. A duplicate timer fire finds the
	// row gone and gets domain.ErrJobConsumed, so a reminder can neither
	// double-fire nor be dropped between the two steps.
	FireReminder(ctx context.Context, jobID string, entry *domain.OutboxEntry) error
}

// BookingRepository is the read-only collaborator view of the scheduling
// surface; this service never writes bookings.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
}
