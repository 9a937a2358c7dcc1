package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/interview-notifier/internal/domain"
)

type pgReminderJobRepository struct {
	pool *pgxpool.Pool
}

// NewPgReminderJobRepository returns a ReminderJobRepository backed by
// PostgreSQL.
func NewPgReminderJobRepository(pool *pgxpool.Pool) ReminderJobRepository {
	return &pgReminderJobRepository{pool: pool}
}

func (r *pgReminderJobRepository) Create(ctx context.Context, job *domain.ReminderJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (job_id, booking_id, kind, scheduled_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (booking_id, kind) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			scheduled_at = EXCLUDED.scheduled_at`,
		job.JobID, job.BookingID, job.Kind, job.ScheduledAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder job: %w", err)
	}
	return nil
}

func (r *pgReminderJobRepository) ListFuture(ctx context.Context, now time.Time) ([]*domain.ReminderJob, error) {
	return r.list(ctx, `SELECT job_id, booking_id, kind, scheduled_at
		FROM reminder_jobs WHERE scheduled_at > $1 ORDER BY scheduled_at`, now)
}

func (r *pgReminderJobRepository) ListPast(ctx context.Context, now time.Time) ([]*domain.ReminderJob, error) {
	return r.list(ctx, `SELECT job_id, booking_id, kind, scheduled_at
		FROM reminder_jobs WHERE scheduled_at <= $1 ORDER BY scheduled_at`, now)
}

func (r *pgReminderJobRepository) list(ctx context.Context, query string, now time.Time) ([]*domain.ReminderJob, error) {
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list reminder jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.ReminderJob
	for rows.Next() {
		var j domain.ReminderJob
		if err := rows.Scan(&j.JobID, &j.BookingID, &j.Kind, &j.ScheduledAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *pgReminderJobRepository) Purge(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM reminder_jobs WHERE job_id = $1`, jobID)
	return err
}

func (r *pgReminderJobRepository) DeleteForBooking(ctx context.Context, bookingID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM reminder_jobs WHERE booking_id = $1`, bookingID)
	return err
}

// FireReminder deletes the job row and inserts the outbox entry in one
// transaction. If the row is already gone (duplicate timer fire, or a
// cancellation that landed first) nothing is enqueued.
func (r *pgReminderJobRepository) FireReminder(ctx context.Context, jobID string, entry *domain.OutboxEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fire reminder: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var consumed string
	err = tx.QueryRow(ctx,
		`DELETE FROM reminder_jobs WHERE job_id = $1 RETURNING job_id`, jobID,
	).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrJobConsumed
	}
	if err != nil {
		return fmt.Errorf("consume reminder job: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_entries
			(id, kind, booking_id, recipient_id, payload, status,
			 attempts, next_retry_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.Kind, entry.BookingID, entry.RecipientID,
		entry.Payload, entry.Status, entry.Attempts,
		entry.NextRetryAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue fired reminder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fire reminder: %w", err)
	}
	return nil
}

type pgBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPgBookingRepository returns the read-only booking view.
func NewPgBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &pgBookingRepository{pool: pool}
}

func (r *pgBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, candidate_id, recruiter_id, event_name,
		       starts_at, timezone, locale, status
		FROM bookings WHERE id = $1`, id)

	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.CandidateID, &b.RecruiterID, &b.EventName,
		&b.StartsAt, &b.Timezone, &b.Locale, &b.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}
