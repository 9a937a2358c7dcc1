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

type pgOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPgOutboxRepository returns an OutboxRepository backed by PostgreSQL.
func NewPgOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &pgOutboxRepository{pool: pool}
}

const outboxColumns = `id, kind, booking_id, recipient_id, payload, status,
	attempts, next_retry_at, last_error, created_at`

func (r *pgOutboxRepository) Create(ctx context.Context, e *domain.OutboxEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbox_entries
			(id, kind, booking_id, recipient_id, payload, status,
			 attempts, next_retry_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Kind, e.BookingID, e.RecipientID, e.Payload, e.Status,
		e.Attempts, e.NextRetryAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (r *pgOutboxRepository) GetByID(ctx context.Context, id string) (*domain.OutboxEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_entries WHERE id = $1`, id)

	e, err := scanOutboxEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so concurrent workers never claim
// the same row, and turns the claim into a lease by pushing next_retry_at
// into the future inside the same statement.
func (r *pgOutboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxEntry, error) {
	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT id FROM outbox_entries
			WHERE status = 'pending' AND next_retry_at <= NOW()
			ORDER BY next_retry_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_entries o
		SET next_retry_at = NOW() + make_interval(secs => $2)
		FROM due
		WHERE o.id = due.id
		RETURNING `+prefixColumns("o.", outboxColumns),
		limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim due outbox entries: %w", err)
	}
	defer rows.Close()
	return scanOutboxEntries(rows)
}

// ClaimByID is the single-row variant of ClaimDue. The conditional UPDATE
// is the whole claim: a row that is resolved, leased, or not yet due never
// matches, so two paths cannot both win it.
func (r *pgOutboxRepository) ClaimByID(ctx context.Context, id string, lease time.Duration) (*domain.OutboxEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE outbox_entries
		SET next_retry_at = NOW() + make_interval(secs => $2)
		WHERE id = $1 AND status = 'pending' AND next_retry_at <= NOW()
		RETURNING `+outboxColumns,
		id, lease.Seconds())

	e, err := scanOutboxEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); errors.Is(gerr, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrNotClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("claim outbox entry %s: %w", id, err)
	}
	return e, nil
}

func (r *pgOutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_entries
		SET status = 'sent', last_error = NULL
		WHERE id = $1`, id)
	return err
}

func (r *pgOutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_entries
		SET status = 'failed', attempts = $2, last_error = $3
		WHERE id = $1`, id, attempts, lastErr)
	return err
}

func (r *pgOutboxRepository) ScheduleRetry(ctx context.Context, id string, attempts int, nextRetry time.Time, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_entries
		SET attempts = $2, next_retry_at = $3, last_error = $4
		WHERE id = $1 AND status = 'pending'`, id, attempts, nextRetry, lastErr)
	return err
}

func (r *pgOutboxRepository) InvalidateForBooking(ctx context.Context, bookingID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_entries
		SET status = 'failed', last_error = 'superseded: booking released'
		WHERE booking_id = $1 AND status = 'pending'`, bookingID)
	return err
}

func (r *pgOutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_entries WHERE status = 'pending'`).Scan(&n)
	return n, err
}

// ---- helpers ----

func scanOutboxEntry(row pgx.Row) (*domain.OutboxEntry, error) {
	var e domain.OutboxEntry
	err := row.Scan(
		&e.ID, &e.Kind, &e.BookingID, &e.RecipientID, &e.Payload,
		&e.Status, &e.Attempts, &e.NextRetryAt, &e.LastError, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanOutboxEntries(rows pgx.Rows) ([]*domain.OutboxEntry, error) {
	var result []*domain.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias
// for use in UPDATE ... RETURNING.
func prefixColumns(prefix, columns string) string {
	out := ""
	for i, c := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += prefix + c
	}
	return out
}

func splitColumns(columns string) []string {
	var cols []string
	field := ""
	for _, r := range columns {
		switch r {
		case ',':
			cols = append(cols, field)
			field = ""
		case ' ', '\n', '\t':
		default:
			field += string(r)
		}
	}
	if field != "" {
		cols = append(cols, field)
	}
	return cols
}
