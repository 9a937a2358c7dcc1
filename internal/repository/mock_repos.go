package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hireloop/interview-notifier/internal/domain"
)

// Hand-written in-memory implementations of the repository interfaces,
// used in unit tests and as the storage behind the dev broker mode.
// No mock-generation library needed.

type MockOutboxRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.OutboxEntry

	CreateErr error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{entries: make(map[string]*domain.OutboxEntry)}
}

func (m *MockOutboxRepository) Create(_ context.Context, e *domain.OutboxEntry) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.entries[e.ID] = &clone
	return nil
}

func (m *MockOutboxRepository) GetByID(_ context.Context, id string) (*domain.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockOutboxRepository) ClaimDue(_ context.Context, limit int, lease time.Duration) ([]*domain.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var due []*domain.OutboxEntry
	for _, e := range m.entries {
		if e.Status == domain.OutboxPending && !e.NextRetryAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.OutboxEntry, len(due))
	for i, e := range due {
		e.NextRetryAt = now.Add(lease)
		clone := *e
		claimed[i] = &clone
	}
	return claimed, nil
}

func (m *MockOutboxRepository) ClaimByID(_ context.Context, id string, lease time.Duration) (*domain.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := time.Now()
	if e.Status != domain.OutboxPending || e.NextRetryAt.After(now) {
		return nil, domain.ErrNotClaimed
	}
	e.NextRetryAt = now.Add(lease)
	clone := *e
	return &clone, nil
}

func (m *MockOutboxRepository) MarkSent(_ context.Context, id string) error {
	return m.update(id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxSent
		e.LastError = nil
	})
}

func (m *MockOutboxRepository) MarkFailed(_ context.Context, id string, attempts int, lastErr string) error {
	return m.update(id, func(e *domain.OutboxEntry) {
		e.Status = domain.OutboxFailed
		e.Attempts = attempts
		e.LastError = &lastErr
	})
}

func (m *MockOutboxRepository) ScheduleRetry(_ context.Context, id string, attempts int, nextRetry time.Time, lastErr string) error {
	return m.update(id, func(e *domain.OutboxEntry) {
		if e.Status != domain.OutboxPending {
			return
		}
		e.Attempts = attempts
		e.NextRetryAt = nextRetry
		e.LastError = &lastErr
	})
}

func (m *MockOutboxRepository) InvalidateForBooking(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason := "superseded: booking released"
	for _, e := range m.entries {
		if e.BookingID == bookingID && e.Status == domain.OutboxPending {
			e.Status = domain.OutboxFailed
			e.LastError = &reason
		}
	}
	return nil
}

func (m *MockOutboxRepository) CountPending(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Status == domain.OutboxPending {
			n++
		}
	}
	return n, nil
}

func (m *MockOutboxRepository) update(id string, fn func(*domain.OutboxEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(e)
	return nil
}

type logKey struct {
	kind        domain.Kind
	bookingID   string
	recipientID string
}

type MockLogRepository struct {
	mu      sync.Mutex
	entries map[logKey]*domain.LogEntry
}

func NewMockLogRepository() *MockLogRepository {
	return &MockLogRepository{entries: make(map[logKey]*domain.LogEntry)}
}

func (m *MockLogRepository) Get(_ context.Context, kind domain.Kind, bookingID, recipientID string) (*domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[logKey{kind, bookingID, recipientID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockLogRepository) UpsertPending(_ context.Context, e *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := logKey{e.Kind, e.BookingID, e.RecipientID}
	if existing, ok := m.entries[key]; ok && existing.Status == domain.DeliverySent {
		return nil
	}
	clone := *e
	clone.Status = domain.DeliveryPending
	m.entries[key] = &clone
	return nil
}

func (m *MockLogRepository) MarkSent(_ context.Context, kind domain.Kind, bookingID, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[logKey{kind, bookingID, recipientID}]; ok {
		e.Status = domain.DeliverySent
		e.LastError = nil
		e.NextRetryAt = nil
	}
	return nil
}

func (m *MockLogRepository) MarkFailed(_ context.Context, kind domain.Kind, bookingID, recipientID string, attempts int, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[logKey{kind, bookingID, recipientID}]; ok && e.Status != domain.DeliverySent {
		e.Status = domain.DeliveryFailed
		e.Attempts = attempts
		e.LastError = &lastErr
		e.NextRetryAt = nil
	}
	return nil
}

func (m *MockLogRepository) DeleteForBooking(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.bookingID == bookingID {
			delete(m.entries, key)
		}
	}
	return nil
}

type MockReminderJobRepository struct {
	mu      sync.Mutex
	jobs    map[string]*domain.ReminderJob
	outbox  *MockOutboxRepository
	FireErr error
}

// NewMockReminderJobRepository wires the reminder mock to an outbox mock
// so FireReminder can perform its delete-then-enqueue atomically under
// one lock, mirroring the single transaction of the pg implementation.
func NewMockReminderJobRepository(outbox *MockOutboxRepository) *MockReminderJobRepository {
	return &MockReminderJobRepository{
		jobs:   make(map[string]*domain.ReminderJob),
		outbox: outbox,
	}
}

func (m *MockReminderJobRepository) Create(_ context.Context, job *domain.ReminderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.BookingID == job.BookingID && j.Kind == job.Kind {
			delete(m.jobs, id)
		}
	}
	clone := *job
	m.jobs[job.JobID] = &clone
	return nil
}

func (m *MockReminderJobRepository) ListFuture(_ context.Context, now time.Time) ([]*domain.ReminderJob, error) {
	return m.listWhere(func(j *domain.ReminderJob) bool { return j.ScheduledAt.After(now) })
}

func (m *MockReminderJobRepository) ListPast(_ context.Context, now time.Time) ([]*domain.ReminderJob, error) {
	return m.listWhere(func(j *domain.ReminderJob) bool { return !j.ScheduledAt.After(now) })
}

func (m *MockReminderJobRepository) listWhere(pred func(*domain.ReminderJob) bool) ([]*domain.ReminderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []*domain.ReminderJob
	for _, j := range m.jobs {
		if pred(j) {
			clone := *j
			jobs = append(jobs, &clone)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].ScheduledAt.Before(jobs[k].ScheduledAt)
	})
	return jobs, nil
}

func (m *MockReminderJobRepository) Purge(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MockReminderJobRepository) DeleteForBooking(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.BookingID == bookingID {
			delete(m.jobs, id)
		}
	}
	return nil
}

func (m *MockReminderJobRepository) FireReminder(ctx context.Context, jobID string, entry *domain.OutboxEntry) error {
	if m.FireErr != nil {
		return m.FireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return domain.ErrJobConsumed
	}
	delete(m.jobs, jobID)
	return m.outbox.Create(ctx, entry)
}

// JobCount reports how many jobs are persisted; used by tests.
func (m *MockReminderJobRepository) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{bookings: make(map[string]*domain.Booking)}
}

func (m *MockBookingRepository) Put(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *b
	m.bookings[b.ID] = &clone
}

func (m *MockBookingRepository) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *b
	return &clone, nil
}
