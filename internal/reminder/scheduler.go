package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/repository"
)

// Announcer publishes a freshly enqueued outbox entry to the broker so a
// consumer can pick it up ahead of the next database poll.
type Announcer interface {
	Announce(ctx context.Context, entry *domain.OutboxEntry, delay time.Duration)
}

// Scheduler owns the reminder lifecycle for bookings: computing plans,
// persisting job rows, arming in-process timers and firing them through
// the transactional job-consume path.
type Scheduler struct {
	jobs     repository.ReminderJobRepository
	outbox   repository.OutboxRepository
	bookings repository.BookingRepository
	announce Announcer
	quiet    QuietHours
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*armedJob
	closed bool

	now func() time.Time
}

type armedJob struct {
	bookingID string
	timer     *time.Timer
}

func NewScheduler(
	jobs repository.ReminderJobRepository,
	outbox repository.OutboxRepository,
	bookings repository.BookingRepository,
	announce Announcer,
	quiet QuietHours,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		outbox:   outbox,
		bookings: bookings,
		announce: announce,
		quiet:    quiet,
		logger:   logger,
		timers:   make(map[string]*armedJob),
		now:      time.Now,
	}
}

// ScheduleForBooking recomputes the reminder plans for a booking,
// replacing any previously scheduled jobs. Plans whose instant has
// already passed are fired synchronously, longest lead time first;
// future plans are persisted and armed.
func (s *Scheduler) ScheduleForBooking(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.CancelForBooking(ctx, bookingID); err != nil {
		return err
	}

	due, future := ComputePlans(b, s.quiet, s.now())

	for _, p := range due {
		entry := s.buildEntry(p.Kind, b)
		if err := s.outbox.Create(ctx, entry); err != nil {
			return err
		}
		if s.announce != nil {
			s.announce.Announce(ctx, entry, 0)
		}
		s.logger.Info("past-due reminder enqueued",
			zap.String("booking_id", bookingID),
			zap.String("kind", string(p.Kind)))
	}

	for _, p := range future {
		job := &domain.ReminderJob{
			JobID:       uuid.NewString(),
			BookingID:   bookingID,
			Kind:        p.Kind,
			ScheduledAt: p.At,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return err
		}
		s.arm(job)
	}
	return nil
}

// CancelForBooking disarms and deletes every pending reminder job for
// the booking.
func (s *Scheduler) CancelForBooking(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	for jobID, a := range s.timers {
		if a.bookingID == bookingID {
			a.timer.Stop()
			delete(s.timers, jobID)
		}
	}
	s.mu.Unlock()
	return s.jobs.DeleteForBooking(ctx, bookingID)
}

// SyncJobs restores the in-process timer state from persisted job rows
// after a restart. Future jobs are re-armed; jobs whose instant passed
// while the process was down, or whose kind is no longer recognized,
// are purged so a backlog does not fire as a burst.
func (s *Scheduler) SyncJobs(ctx context.Context) error {
	now := s.now()

	past, err := s.jobs.ListPast(ctx, now)
	if err != nil {
		return err
	}
	for _, job := range past {
		if err := s.jobs.Purge(ctx, job.JobID); err != nil {
			return err
		}
	}

	future, err := s.jobs.ListFuture(ctx, now)
	if err != nil {
		return err
	}
	armed := 0
	for _, job := range future {
		if _, ok := domain.ReminderOffsets[job.Kind]; !ok {
			if err := s.jobs.Purge(ctx, job.JobID); err != nil {
				return err
			}
			continue
		}
		s.arm(job)
		armed++
	}

	s.logger.Info("reminder jobs synced",
		zap.Int("armed", armed),
		zap.Int("purged_past_due", len(past)))
	return nil
}

// Close stops all armed timers. Persisted rows are untouched and will be
// re-armed by SyncJobs on the next start.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for jobID, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, jobID)
	}
}

// Armed reports how many timers are currently live.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) arm(job *domain.ReminderJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	j := *job
	delay := j.ScheduledAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[j.JobID] = &armedJob{
		bookingID: j.BookingID,
		timer:     time.AfterFunc(delay, func() { s.fire(&j) }),
	}
}

// fire consumes the job row and enqueues the outbox entry in one
// transaction. A job already consumed by a concurrent firing or
// cancelled by a release is skipped silently.
func (s *Scheduler) fire(job *domain.ReminderJob) {
	s.mu.Lock()
	delete(s.timers, job.JobID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := s.bookings.GetByID(ctx, job.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if perr := s.jobs.Purge(ctx, job.JobID); perr != nil {
				s.logger.Error("failed to purge orphaned reminder job",
					zap.String("job_id", job.JobID), zap.Error(perr))
			}
			return
		}
		s.logger.Error("failed to load booking for reminder",
			zap.String("booking_id", job.BookingID), zap.Error(err))
		return
	}

	entry := s.buildEntry(job.Kind, b)
	if err := s.jobs.FireReminder(ctx, job.JobID, entry); err != nil {
		if errors.Is(err, domain.ErrJobConsumed) {
			s.logger.Debug("reminder job already consumed",
				zap.String("job_id", job.JobID))
			return
		}
		s.logger.Error("failed to fire reminder",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}

	if s.announce != nil {
		s.announce.Announce(ctx, entry, 0)
	}
	s.logger.Info("reminder fired",
		zap.String("booking_id", job.BookingID),
		zap.String("kind", string(job.Kind)))
}

func (s *Scheduler) buildEntry(kind domain.Kind, b *domain.Booking) *domain.OutboxEntry {
	payload, _ := json.Marshal(map[string]any{
		"event_name": b.EventName,
		"starts_at":  b.StartsAt.UTC().Format(time.RFC3339),
	})
	now := s.now()
	return &domain.OutboxEntry{
		ID:          uuid.NewString(),
		Kind:        kind,
		BookingID:   b.ID,
		RecipientID: b.CandidateID,
		Payload:     payload,
		Status:      domain.OutboxPending,
		Attempts:    0,
		NextRetryAt: now,
		CreatedAt:   now,
	}
}
