// Package service wires booking-status transitions into the notification
// pipeline: a confirmation fans out to the outbox and arms reminders, a
// release tears everything back down.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/repository"
)

// ReminderScheduler is the slice of the reminder scheduler the booking
// service needs.
type ReminderScheduler interface {
	ScheduleForBooking(ctx context.Context, bookingID string) error
	CancelForBooking(ctx context.Context, bookingID string) error
}

// Announcer publishes a fresh outbox entry to the broker.
type Announcer interface {
	Announce(ctx context.Context, entry *domain.OutboxEntry, delay time.Duration)
}

// BookingService reacts to booking lifecycle transitions. It owns no
// booking state itself; the scheduling surface does.
type BookingService struct {
	bookings  repository.BookingRepository
	outbox    repository.OutboxRepository
	logs      repository.LogRepository
	reminders ReminderScheduler
	announce  Announcer
	logger    *zap.Logger
}

func NewBookingService(
	bookings repository.BookingRepository,
	outbox repository.OutboxRepository,
	logs repository.LogRepository,
	reminders ReminderScheduler,
	announce Announcer,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		outbox:    outbox,
		logs:      logs,
		reminders: reminders,
		announce:  announce,
		logger:    logger,
	}
}

// Confirm enqueues the confirmation message to the candidate and arms the
// reminder chain for the booking.
func (s *BookingService) Confirm(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	entry := buildEntry(domain.KindBookingConfirmed, b, b.CandidateID)
	if err := s.outbox.Create(ctx, entry); err != nil {
		return err
	}
	if s.announce != nil {
		s.announce.Announce(ctx, entry, 0)
	}

	if err := s.reminders.ScheduleForBooking(ctx, bookingID); err != nil {
		return err
	}

	s.logger.Info("booking confirmed",
		zap.String("booking_id", bookingID),
		zap.String("candidate_id", b.CandidateID))
	return nil
}

// Release tears down everything attached to the booking: pending outbox
// rows are invalidated, reminder jobs cancelled and ledger rows deleted
// so a future recipient of the same slot starts clean. The recruiter is
// told the slot opened up again.
func (s *BookingService) Release(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.reminders.CancelForBooking(ctx, bookingID); err != nil {
		return err
	}
	if err := s.outbox.InvalidateForBooking(ctx, bookingID); err != nil {
		return err
	}
	if err := s.logs.DeleteForBooking(ctx, bookingID); err != nil {
		return err
	}

	entry := buildEntry(domain.KindBookingReleased, b, b.RecruiterID)
	if err := s.outbox.Create(ctx, entry); err != nil {
		return err
	}
	if s.announce != nil {
		s.announce.Announce(ctx, entry, 0)
	}

	s.logger.Info("booking released",
		zap.String("booking_id", bookingID),
		zap.String("recruiter_id", b.RecruiterID))
	return nil
}

func buildEntry(kind domain.Kind, b *domain.Booking, recipientID string) *domain.OutboxEntry {
	payload, _ := json.Marshal(map[string]any{
		"event_name": b.EventName,
		"starts_at":  b.StartsAt.UTC().Format(time.RFC3339),
	})
	now := time.Now()
	return &domain.OutboxEntry{
		ID:          uuid.NewString(),
		Kind:        kind,
		BookingID:   b.ID,
		RecipientID: recipientID,
		Payload:     payload,
		Status:      domain.OutboxPending,
		NextRetryAt: now,
		CreatedAt:   now,
	}
}
