package handler

import (
	"context"
	"net/http"
	"time"
)

// PendingCounter reports the pending outbox backlog.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// TimerCounter reports how many reminder timers are armed in-process.
type TimerCounter interface {
	Armed() int
}

// BreakerProbe reports how long the shared send breaker stays open.
type BreakerProbe interface {
	Remaining() time.Duration
}

// DeadLetterCounter reports the dead-letter channel depth.
type DeadLetterCounter interface {
	DeadLetterDepth(ctx context.Context) (int64, error)
}

// PipelineHandler serves a JSON snapshot of the delivery pipeline for
// quick operator checks without a Prometheus scrape.
type PipelineHandler struct {
	outbox    PendingCounter
	reminders TimerCounter
	breaker   BreakerProbe
	dead      DeadLetterCounter
}

func NewPipelineHandler(outbox PendingCounter, reminders TimerCounter, breaker BreakerProbe, dead DeadLetterCounter) *PipelineHandler {
	return &PipelineHandler{outbox: outbox, reminders: reminders, breaker: breaker, dead: dead}
}

// GetPipeline handles GET /api/v1/pipeline
//
// @Summary  Pipeline snapshot
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/pipeline [get]
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	pending, err := h.outbox.CountPending(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count pending entries")
		return
	}

	breakerOpenMs := int64(0)
	if remaining := h.breaker.Remaining(); remaining > 0 {
		breakerOpenMs = remaining.Milliseconds()
	}

	deadLetters, err := h.dead.DeadLetterDepth(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read dead-letter depth")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"outbox_pending":  pending,
		"reminders_armed": h.reminders.Armed(),
		"breaker_open_ms": breakerOpenMs,
		"dead_letters":    deadLetters,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
