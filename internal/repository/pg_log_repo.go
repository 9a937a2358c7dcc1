package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/interview-notifier/internal/domain"
)

type pgLogRepository struct {
	pool *pgxpool.Pool
}

// NewPgLogRepository returns a LogRepository backed by PostgreSQL.
func NewPgLogRepository(pool *pgxpool.Pool) LogRepository {
	return &pgLogRepository{pool: pool}
}

func (r *pgLogRepository) Get(ctx context.Context, kind domain.Kind, bookingID, recipientID string) (*domain.LogEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT kind, booking_id, recipient_id, delivery_status,
		       payload_snapshot, attempts, last_error, next_retry_at,
		       template_key, template_version
		FROM notification_log
		WHERE kind = $1 AND booking_id = $2 AND recipient_id = $3`,
		kind, bookingID, recipientID)

	var e domain.LogEntry
	err := row.Scan(
		&e.Kind, &e.BookingID, &e.RecipientID, &e.Status,
		&e.PayloadSnapshot, &e.Attempts, &e.LastError, &e.NextRetryAt,
		&e.TemplateKey, &e.TemplateVersion,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log entry: %w", err)
	}
	return &e, nil
}

// UpsertPending writes the durability checkpoint before a send attempt.
// The WHERE guard keeps a row that already reached 'sent' untouched, which
// preserves the at-most-one-sent invariant even when two workers race on
// the same key.
func (r *pgLogRepository) UpsertPending(ctx context.Context, e *domain.LogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_log
			(kind, booking_id, recipient_id, delivery_status,
			 payload_snapshot, attempts, next_retry_at,
			 template_key, template_version)
		VALUES ($1,$2,$3,'pending',$4,$5,$6,$7,$8)
		ON CONFLICT (kind, booking_id, recipient_id) DO UPDATE SET
			delivery_status  = 'pending',
			payload_snapshot = EXCLUDED.payload_snapshot,
			attempts         = EXCLUDED.attempts,
			next_retry_at    = EXCLUDED.next_retry_at,
			template_key     = EXCLUDED.template_key,
			template_version = EXCLUDED.template_version
		WHERE notification_log.delivery_status <> 'sent'`,
		e.Kind, e.BookingID, e.RecipientID, e.PayloadSnapshot,
		e.Attempts, e.NextRetryAt, e.TemplateKey, e.TemplateVersion,
	)
	if err != nil {
		return fmt.Errorf("upsert pending log entry: %w", err)
	}
	return nil
}

func (r *pgLogRepository) MarkSent(ctx context.Context, kind domain.Kind, bookingID, recipientID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_log
		SET delivery_status = 'sent', last_error = NULL, next_retry_at = NULL
		WHERE kind = $1 AND booking_id = $2 AND recipient_id = $3`,
		kind, bookingID, recipientID)
	return err
}

func (r *pgLogRepository) MarkFailed(ctx context.Context, kind domain.Kind, bookingID, recipientID string, attempts int, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_log
		SET delivery_status = 'failed', attempts = $4, last_error = $5,
		    next_retry_at = NULL
		WHERE kind = $1 AND booking_id = $2 AND recipient_id = $3
		  AND delivery_status <> 'sent'`,
		kind, bookingID, recipientID, attempts, lastErr)
	return err
}

func (r *pgLogRepository) DeleteForBooking(ctx context.Context, bookingID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM notification_log WHERE booking_id = $1`, bookingID)
	return err
}
