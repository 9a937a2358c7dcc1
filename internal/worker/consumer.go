package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/broker"
	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/repository"
)

// Announcer publishes freshly enqueued outbox entries onto the broker so
// consumers pick them up without waiting for the next poll. A nil
// Announcer is valid and means pure poll mode.
type Announcer struct {
	broker      broker.Broker
	maxAttempts int
	logger      *zap.Logger
}

func NewAnnouncer(b broker.Broker, maxAttempts int, logger *zap.Logger) *Announcer {
	return &Announcer{broker: b, maxAttempts: maxAttempts, logger: logger}
}

// Announce is best effort: the row is already durable in the outbox, and
// the poll loop is the recovery net for a failed publish.
func (a *Announcer) Announce(ctx context.Context, e *domain.OutboxEntry, delay time.Duration) {
	if a == nil || a.broker == nil {
		return
	}
	_, err := a.broker.Publish(ctx, broker.Payload{
		OutboxID:    e.ID,
		Kind:        string(e.Kind),
		BookingID:   e.BookingID,
		RecipientID: e.RecipientID,
		Body:        e.Payload,
		Attempt:     e.Attempts,
		MaxAttempts: a.maxAttempts,
	}, delay)
	if err != nil {
		a.logger.Warn("publish outbox entry to broker",
			zap.String("outbox_id", e.ID), zap.Error(err))
	}
}

// Consumer pumps broker messages through the worker's delivery state
// machine and translates each result into ack, requeue, or dead-letter,
// so a message can never be silently dropped. A periodic sweep reclaims
// messages a crashed consumer read but never acked.
type Consumer struct {
	broker        broker.Broker
	worker        *Worker
	outbox        repository.OutboxRepository
	batchSize     int
	claimMinIdle  time.Duration
	claimInterval time.Duration
	hooks         MetricHooks
	logger        *zap.Logger
}

func NewConsumer(
	b broker.Broker,
	w *Worker,
	outbox repository.OutboxRepository,
	batchSize int,
	claimMinIdle, claimInterval time.Duration,
	hooks MetricHooks,
	logger *zap.Logger,
) *Consumer {
	hooks.fillNoops()
	return &Consumer{
		broker:        b,
		worker:        w,
		outbox:        outbox,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
		claimInterval: claimInterval,
		hooks:         hooks,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled, alternating blocking reads with
// periodic stale-claim sweeps.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("broker consumer started")
	lastSweep := time.Now()

	for {
		if ctx.Err() != nil {
			c.logger.Info("broker consumer stopping")
			return
		}

		msgs, err := c.broker.Read(ctx, c.batchSize, 2*time.Second)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("broker read", zap.Error(err))
			// A broker outage would otherwise turn this loop into a busy
			// spin of failing reads.
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			c.dispatch(ctx, msg)
		}

		if time.Since(lastSweep) >= c.claimInterval {
			c.sweepStale(ctx)
			lastSweep = time.Now()
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg broker.Message) {
	log := c.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("outbox_id", msg.Payload.OutboxID))

	// The claim is the idempotency gate between this path and the poll
	// loop: only one of them can win the row, so one key never sees two
	// concurrent transport sends.
	entry, err := c.outbox.ClaimByID(ctx, msg.Payload.OutboxID, c.worker.cfg.ClaimLease)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := c.broker.DeadLetter(ctx, msg, "orphaned: no outbox row"); err != nil {
			log.Error("dead-letter orphaned message", zap.Error(err))
		}
		return
	case errors.Is(err, domain.ErrNotClaimed):
		// Resolved already, or a poll worker holds the lease. Either way
		// the outbox row is authoritative and the poll loop is the
		// recovery net, so the broker copy can go.
		if err := c.broker.Ack(ctx, msg.ID); err != nil {
			log.Error("ack unclaimed message", zap.Error(err))
		}
		return
	case err != nil:
		log.Error("claim outbox entry", zap.Error(err))
		// Left unacked; the stale-claim sweep redelivers it.
		return
	}

	res := c.worker.Process(ctx, entry)
	switch {
	case res.Retry():
		if msg.Payload.Attempt+1 >= msg.Payload.MaxAttempts {
			// The DB side keeps retrying on its own budget; the broker
			// copy has exhausted its attempts and moves aside.
			if err := c.broker.DeadLetter(ctx, msg, "broker attempts exhausted"); err != nil {
				log.Error("dead-letter exhausted message", zap.Error(err))
			}
			c.hooks.OnDeadLetter(entry.Kind)
			return
		}
		if _, err := c.broker.Requeue(ctx, msg, res.Delay); err != nil {
			log.Error("requeue message", zap.Error(err))
		}
	case res.Terminal():
		if err := c.broker.DeadLetter(ctx, msg, res.Reason); err != nil {
			log.Error("dead-letter message", zap.Error(err))
		}
		c.hooks.OnDeadLetter(entry.Kind)
	default:
		if err := c.broker.Ack(ctx, msg.ID); err != nil {
			log.Error("ack message", zap.Error(err))
		}
	}
}

func (c *Consumer) sweepStale(ctx context.Context) {
	msgs, err := c.broker.ClaimStale(ctx, c.claimMinIdle, c.batchSize)
	if err != nil {
		c.logger.Error("claim stale messages", zap.Error(err))
		return
	}
	if len(msgs) > 0 {
		c.logger.Info("reclaimed stale messages", zap.Int("count", len(msgs)))
	}
	for _, msg := range msgs {
		c.dispatch(ctx, msg)
	}
}
