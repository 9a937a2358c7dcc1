package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// SendBudget is the global token bucket every transport send passes
// through. Refill is the configured messages-per-second rate; capacity is
// twice the rate, allowing a short burst after an idle stretch without
// letting sustained throughput exceed the budget.
type SendBudget struct {
	limiter *rate.Limiter
}

// New creates a SendBudget with ratePerSec tokens per second.
func New(ratePerSec int) *SendBudget {
	return &SendBudget{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 2*ratePerSec),
	}
}

// Wait blocks the calling worker until a token is granted. Returns a
// non-nil error only if ctx is cancelled while waiting.
func (b *SendBudget) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}
