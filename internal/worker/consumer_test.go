package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/broker"
	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/ratelimiter"
	"github.com/hireloop/interview-notifier/internal/repository"
	"github.com/hireloop/interview-notifier/internal/template"
	"github.com/hireloop/interview-notifier/internal/transport"
)

type consumerFixture struct {
	consumer *Consumer
	worker   *Worker
	broker   *broker.Memory
	outbox   *repository.MockOutboxRepository
	sender   *transport.MockSender
}

func newConsumerFixture(t *testing.T, maxAttempts int) *consumerFixture {
	t.Helper()

	outbox := repository.NewMockOutboxRepository()
	bookings := repository.NewMockBookingRepository()
	bookings.Put(&domain.Booking{
		ID:          "bk-1",
		CandidateID: "cand-1",
		RecruiterID: "rec-1",
		EventName:   "Backend Interview",
		StartsAt:    time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		Timezone:    "UTC",
		Locale:      "en",
		Status:      domain.BookingConfirmed,
	})
	sender := transport.NewMockSender()

	w := New(
		Config{BatchSize: 10, MaxAttempts: maxAttempts, PollInterval: time.Second, ClaimLease: time.Minute},
		outbox, repository.NewMockLogRepository(),
		template.DefaultCatalog(),
		sender,
		ratelimiter.New(1000),
		NewGate(time.Minute, 2*time.Minute),
		NewBackoff(time.Millisecond, time.Second),
		MetricHooks{},
		zap.NewNop(),
	)
	RegisterBookingHandlers(w, bookings)

	b := broker.NewMemory()
	return &consumerFixture{
		consumer: NewConsumer(b, w, outbox, 10, time.Minute, time.Minute, MetricHooks{}, zap.NewNop()),
		worker:   w,
		broker:   b,
		outbox:   outbox,
		sender:   sender,
	}
}

func publishAndRead(t *testing.T, b *broker.Memory, p broker.Payload) broker.Message {
	t.Helper()
	_, err := b.Publish(context.Background(), p, 0)
	require.NoError(t, err)
	msgs, err := b.Read(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func outboxEntry(outbox *repository.MockOutboxRepository, kind domain.Kind) *domain.OutboxEntry {
	e := &domain.OutboxEntry{
		ID:          "out-1",
		Kind:        kind,
		BookingID:   "bk-1",
		RecipientID: "cand-1",
		Status:      domain.OutboxPending,
		NextRetryAt: time.Now().Add(-time.Second),
		CreatedAt:   time.Now(),
	}
	_ = outbox.Create(context.Background(), e)
	return e
}

func message(e *domain.OutboxEntry, attempt, maxAttempts int) broker.Payload {
	return broker.Payload{
		OutboxID:    e.ID,
		Kind:        string(e.Kind),
		BookingID:   e.BookingID,
		RecipientID: e.RecipientID,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}
}

func TestDispatch_SentMessageIsAcked(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.KindBookingConfirmed)
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	f.consumer.dispatch(context.Background(), msg)

	require.Len(t, f.sender.Calls(), 1)
	_, unacked, dead := f.broker.Depths()
	assert.Zero(t, unacked)
	assert.Zero(t, dead)
}

// A message whose outbox row is gone cannot be processed and cannot be
// retried; it goes straight to the dead-letter channel.
func TestDispatch_OrphanedMessageDeadLetters(t *testing.T) {
	f := newConsumerFixture(t, 4)
	msg := publishAndRead(t, f.broker, broker.Payload{OutboxID: "no-such-row", MaxAttempts: 4})

	f.consumer.dispatch(context.Background(), msg)

	dead := f.broker.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "orphaned: no outbox row", dead[0].Reason)
	assert.Empty(t, f.sender.Calls())
}

// A row already resolved through the poll path is acked without a second
// send.
func TestDispatch_ResolvedEntryAckedWithoutSend(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.KindBookingConfirmed)
	require.NoError(t, f.outbox.MarkSent(context.Background(), e.ID))
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	f.consumer.dispatch(context.Background(), msg)

	assert.Empty(t, f.sender.Calls())
	_, unacked, _ := f.broker.Depths()
	assert.Zero(t, unacked)
}

func TestDispatch_TerminalResultDeadLetters(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.Kind("carrier_pigeon"))
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	f.consumer.dispatch(context.Background(), msg)

	dead := f.broker.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "unsupported_type", dead[0].Reason)
}

func TestDispatch_RetryRequeuesWithIncrementedAttempt(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.KindReminder24h)
	f.sender.NextErr = domain.Transient(errors.New("gateway timeout"))
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	f.consumer.dispatch(context.Background(), msg)

	ready, unacked, dead := f.broker.Depths()
	assert.Equal(t, 1, ready, "message requeued")
	assert.Zero(t, unacked)
	assert.Zero(t, dead)
}

// A row the broker announced is also due for the next poll; whichever
// path claims it first delivers, and the loser must not send. Here the
// poll worker wins and is held open inside the transport send while the
// consumer dispatches the same entry.
func TestDispatch_ConcurrentWithPollWorker_SendsOnce(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.KindBookingConfirmed)
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.sender.OnSend = func() {
		close(entered)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.worker.PollOnce(context.Background())
	}()

	<-entered
	f.consumer.dispatch(context.Background(), msg)
	close(release)
	<-done

	require.Len(t, f.sender.Calls(), 1, "one key must see at most one transport send")
	got, err := f.outbox.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxSent, got.Status)
	_, unacked, dead := f.broker.Depths()
	assert.Zero(t, unacked, "losing consumer acks without processing")
	assert.Zero(t, dead)
}

// The deterministic half of the race above: a row whose lease another
// worker holds is acked without a send.
func TestDispatch_LeasedEntryAckedWithoutSend(t *testing.T) {
	f := newConsumerFixture(t, 4)
	e := outboxEntry(f.outbox, domain.KindBookingConfirmed)
	msg := publishAndRead(t, f.broker, message(e, 0, 4))

	claimed, err := f.outbox.ClaimDue(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	f.consumer.dispatch(context.Background(), msg)

	assert.Empty(t, f.sender.Calls())
	_, unacked, dead := f.broker.Depths()
	assert.Zero(t, unacked)
	assert.Zero(t, dead)
}

type unreachableBroker struct {
	broker.Broker
	reads atomic.Int32
}

func (b *unreachableBroker) Read(context.Context, int, time.Duration) ([]broker.Message, error) {
	b.reads.Add(1)
	return nil, errors.New("connection refused")
}

// A broker outage must not turn the consumer loop into a busy spin of
// failing reads.
func TestRun_BacksOffAfterReadError(t *testing.T) {
	f := newConsumerFixture(t, 4)
	b := &unreachableBroker{}
	c := NewConsumer(b, f.worker, f.outbox, 10, time.Minute, time.Minute, MetricHooks{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.LessOrEqual(t, b.reads.Load(), int32(2))
}

// When the broker copy has spent its attempts it is dead-lettered even
// though the poll path keeps the row retrying on the DB budget.
func TestDispatch_ExhaustedBrokerAttemptsDeadLetter(t *testing.T) {
	f := newConsumerFixture(t, 10)
	e := outboxEntry(f.outbox, domain.KindReminder24h)
	f.sender.NextErr = domain.Transient(errors.New("gateway timeout"))
	msg := publishAndRead(t, f.broker, message(e, 3, 4))

	f.consumer.dispatch(context.Background(), msg)

	dead := f.broker.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "broker attempts exhausted", dead[0].Reason)
}
