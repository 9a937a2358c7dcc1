// Package worker contains the notification delivery loop: claiming due
// outbox rows, enforcing idempotency against the notification log,
// rendering, rate limiting, circuit breaking, and writing back final or
// retry state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/ratelimiter"
	"github.com/hireloop/interview-notifier/internal/repository"
	"github.com/hireloop/interview-notifier/internal/template"
	"github.com/hireloop/interview-notifier/internal/transport"
)

// SendPlan is what a per-kind handler resolves before rendering: who the
// message goes to and with which template coordinates.
type SendPlan struct {
	RecipientID string
	Locale      string
	Channel     domain.Channel
	Scope       domain.Scope
	TemplateCtx template.Context
}

// Handler resolves the send plan for one notification kind.
type Handler interface {
	Prepare(ctx context.Context, e *domain.OutboxEntry) (*SendPlan, error)
}

// SideEffect runs after a notification of its kind is marked sent, e.g.
// arming the reminder scheduler once the confirmation went out.
type SideEffect func(ctx context.Context, e *domain.OutboxEntry) error

// MetricHooks carries the metric callbacks injected by main. Breaker
// reschedules deliberately hit none of these: they are not failures.
type MetricHooks struct {
	OnSent       func(kind domain.Kind, latency time.Duration)
	OnFailed     func(kind domain.Kind, class domain.FailureClass)
	OnRetried    func(kind domain.Kind)
	OnDeadLetter func(kind domain.Kind)
}

func (h *MetricHooks) fillNoops() {
	if h.OnSent == nil {
		h.OnSent = func(domain.Kind, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Kind, domain.FailureClass) {}
	}
	if h.OnRetried == nil {
		h.OnRetried = func(domain.Kind) {}
	}
	if h.OnDeadLetter == nil {
		h.OnDeadLetter = func(domain.Kind) {}
	}
}

// Config bundles the worker's tunables.
type Config struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
	ClaimLease   time.Duration
}

// Worker claims due outbox rows and drives each through the delivery
// state machine: queued -> claimed -> {sent | retry-scheduled -> queued |
// dead}. One Worker processes its batch serially; multiple Workers may
// run concurrently because the claim query is atomic.
type Worker struct {
	cfg      Config
	outbox   repository.OutboxRepository
	logs     repository.LogRepository
	handlers map[domain.Kind]Handler
	effects  map[domain.Kind]SideEffect
	renderer template.Renderer
	sender   transport.Sender
	budget   *ratelimiter.SendBudget
	gate     *Gate
	backoff  Backoff
	hooks    MetricHooks
	logger   *zap.Logger
}

func New(
	cfg Config,
	outbox repository.OutboxRepository,
	logs repository.LogRepository,
	renderer template.Renderer,
	sender transport.Sender,
	budget *ratelimiter.SendBudget,
	gate *Gate,
	backoff Backoff,
	hooks MetricHooks,
	logger *zap.Logger,
) *Worker {
	hooks.fillNoops()
	return &Worker{
		cfg:      cfg,
		outbox:   outbox,
		logs:     logs,
		handlers: make(map[domain.Kind]Handler),
		effects:  make(map[domain.Kind]SideEffect),
		renderer: renderer,
		sender:   sender,
		budget:   budget,
		gate:     gate,
		backoff:  backoff,
		hooks:    hooks,
		logger:   logger,
	}
}

// RegisterHandler binds a handler to a kind. Entries of unregistered
// kinds fail terminally with reason "unsupported_type".
func (w *Worker) RegisterHandler(kind domain.Kind, h Handler) {
	w.handlers[kind] = h
}

// RegisterSideEffect binds a post-send side effect to a kind.
func (w *Worker) RegisterSideEffect(kind domain.Kind, fn SideEffect) {
	w.effects[kind] = fn
}

// Run polls on the configured interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("notification worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch_size", w.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopping")
			return
		case <-ticker.C:
			w.PollOnce(ctx)
		}
	}
}

// PollOnce claims one batch of due entries and processes them serially.
func (w *Worker) PollOnce(ctx context.Context) {
	entries, err := w.outbox.ClaimDue(ctx, w.cfg.BatchSize, w.cfg.ClaimLease)
	if err != nil {
		w.logger.Error("claim due outbox entries", zap.Error(err))
		return
	}
	for _, e := range entries {
		w.Process(ctx, e)
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeRetry
	outcomeTerminal
)

// Result reports how processing one entry concluded, so the broker
// consumer can translate it into ack, requeue, or dead-letter.
type Result struct {
	Outcome outcome
	Delay   time.Duration
	Reason  string
}

func (r Result) Sent() bool     { return r.Outcome == outcomeSent }
func (r Result) Retry() bool    { return r.Outcome == outcomeRetry }
func (r Result) Terminal() bool { return r.Outcome == outcomeTerminal }

// Process drives one claimed entry through the delivery state machine.
func (w *Worker) Process(ctx context.Context, e *domain.OutboxEntry) Result {
	start := time.Now()
	log := w.logger.With(
		zap.String("outbox_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("booking_id", e.BookingID),
		zap.String("recipient_id", e.RecipientID),
	)

	// Idempotent short-circuit: a "sent" ledger row means a previous
	// attempt (or a duplicate trigger) already delivered this key.
	existing, err := w.logs.Get(ctx, e.Kind, e.BookingID, e.RecipientID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error("notification log lookup", zap.Error(err))
		return Result{Outcome: outcomeSkipped}
	}
	if existing != nil && existing.Status == domain.DeliverySent {
		if err := w.outbox.MarkSent(ctx, e.ID); err != nil {
			log.Error("mark outbox sent after short-circuit", zap.Error(err))
		}
		log.Debug("already sent, short-circuited")
		return Result{Outcome: outcomeSkipped}
	}

	handler, ok := w.handlers[e.Kind]
	if !ok {
		return w.failTerminal(ctx, log, e, e.Attempts, domain.FailureConfig, "unsupported_type")
	}

	plan, err := handler.Prepare(ctx, e)
	if err != nil {
		se := domain.ClassifySend(err)
		if se.Retryable() {
			return w.scheduleRetry(ctx, log, e, se)
		}
		return w.failTerminal(ctx, log, e, e.Attempts, se.Class, se.Error())
	}

	rendered, err := w.renderer.Render(e.Kind, plan.TemplateCtx, plan.Locale, plan.Channel, plan.Scope)
	if err != nil {
		// A missing template is an operator problem; retrying cannot fix it.
		return w.failTerminal(ctx, log, e, e.Attempts, domain.FailureConfig, err.Error())
	}

	// Durability checkpoint: the pending ledger row is written before the
	// transport attempt, so a crash between send and final write cannot
	// duplicate-send past a restart.
	attempt := e.Attempts + 1
	if err := w.logs.UpsertPending(ctx, &domain.LogEntry{
		Kind:            e.Kind,
		BookingID:       e.BookingID,
		RecipientID:     e.RecipientID,
		PayloadSnapshot: e.Payload,
		Attempts:        attempt,
		TemplateKey:     rendered.Key,
		TemplateVersion: rendered.Version,
	}); err != nil {
		log.Error("write pending log entry", zap.Error(err))
		return Result{Outcome: outcomeSkipped}
	}

	// Breaker check: reschedule with the remaining cool-down, without
	// spending an attempt or counting a failure.
	if remaining := w.gate.Remaining(); remaining > 0 {
		delay := remaining + time.Second
		if err := w.outbox.ScheduleRetry(ctx, e.ID, e.Attempts, time.Now().UTC().Add(delay), "circuit breaker open"); err != nil {
			log.Error("reschedule during breaker cool-down", zap.Error(err))
		}
		log.Info("circuit breaker open, rescheduled", zap.Duration("delay", delay))
		return Result{Outcome: outcomeRetry, Delay: delay}
	}

	if err := w.budget.Wait(ctx); err != nil {
		// ctx cancelled while waiting for a token, i.e. shutting down. The
		// claim lease expires and the row becomes due again.
		return Result{Outcome: outcomeSkipped}
	}

	msgID, err := w.sender.Send(ctx, plan.RecipientID, rendered.Text)
	if err != nil {
		se := domain.ClassifySend(err)
		if !se.Retryable() {
			return w.failTerminal(ctx, log, e, attempt, se.Class, se.Error())
		}
		if attempt >= w.cfg.MaxAttempts {
			return w.failTerminal(ctx, log, e, attempt, domain.FailureExhausted,
				fmt.Sprintf("retries exhausted after %d attempts: %v", attempt, se))
		}
		openUntil := w.gate.Trip()
		log.Warn("transient send failure",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Time("breaker_open_until", openUntil))
		return w.scheduleRetry(ctx, log, e, se)
	}

	if err := w.outbox.MarkSent(ctx, e.ID); err != nil {
		log.Error("mark outbox sent", zap.Error(err))
	}
	if err := w.logs.MarkSent(ctx, e.Kind, e.BookingID, e.RecipientID); err != nil {
		log.Error("mark log sent", zap.Error(err))
	}

	if fn, ok := w.effects[e.Kind]; ok {
		if err := fn(ctx, e); err != nil {
			log.Error("post-send side effect", zap.Error(err))
		}
	}

	w.hooks.OnSent(e.Kind, time.Since(start))
	log.Info("notification sent",
		zap.String("transport_msg_id", msgID),
		zap.Int("attempt", attempt))
	return Result{Outcome: outcomeSent}
}

// scheduleRetry computes the jittered backoff (clamped to any transport
// hint), increments the attempt counter, and leaves the entry pending.
func (w *Worker) scheduleRetry(ctx context.Context, log *zap.Logger, e *domain.OutboxEntry, se *domain.SendError) Result {
	attempt := e.Attempts + 1
	delay := w.backoff.Jittered(attempt, se.RetryAfter)
	nextRetry := time.Now().UTC().Add(delay)

	if err := w.outbox.ScheduleRetry(ctx, e.ID, attempt, nextRetry, se.Error()); err != nil {
		log.Error("schedule retry", zap.Error(err))
	}
	w.hooks.OnRetried(e.Kind)
	log.Info("retry scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	return Result{Outcome: outcomeRetry, Delay: delay}
}

// failTerminal marks both the outbox row and the ledger row failed. The
// ledger row is created first when the failure happened before the
// pending checkpoint, so every terminal failure leaves an audit pair.
func (w *Worker) failTerminal(ctx context.Context, log *zap.Logger, e *domain.OutboxEntry, attempts int, class domain.FailureClass, reason string) Result {
	if err := w.outbox.MarkFailed(ctx, e.ID, attempts, reason); err != nil {
		log.Error("mark outbox failed", zap.Error(err))
	}
	if _, err := w.logs.Get(ctx, e.Kind, e.BookingID, e.RecipientID); errors.Is(err, domain.ErrNotFound) {
		if err := w.logs.UpsertPending(ctx, &domain.LogEntry{
			Kind:            e.Kind,
			BookingID:       e.BookingID,
			RecipientID:     e.RecipientID,
			PayloadSnapshot: e.Payload,
			Attempts:        attempts,
		}); err != nil {
			log.Error("create audit log entry", zap.Error(err))
		}
	}
	if err := w.logs.MarkFailed(ctx, e.Kind, e.BookingID, e.RecipientID, attempts, reason); err != nil {
		log.Error("mark log failed", zap.Error(err))
	}

	w.hooks.OnFailed(e.Kind, class)
	log.Warn("notification failed terminally",
		zap.String("class", string(class)),
		zap.String("reason", reason))
	return Result{Outcome: outcomeTerminal, Reason: reason}
}
