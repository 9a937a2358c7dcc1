package worker

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Gate is the failure-triggered circuit breaker shared by every send
// attempt. Any transient transport failure extends the open window to
// now + random(low, high); while the window is open, claimed entries are
// rescheduled with the remaining cool-down instead of hitting the
// transport. A failure storm from one recipient therefore throttles sends
// to everyone, trading availability for not hammering the gateway.
type Gate struct {
	mu        sync.Mutex
	openUntil time.Time

	low, high time.Duration
	now       func() time.Time
	randF     func() float64
}

// NewGate creates a Gate with the given cool-down window bounds.
func NewGate(low, high time.Duration) *Gate {
	return &Gate{
		low:   low,
		high:  high,
		now:   time.Now,
		randF: rand.Float64,
	}
}

// Trip opens the gate for a randomized cool-down and returns the new
// open-until instant. A trip while already open extends the window.
func (g *Gate) Trip() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	window := g.low + time.Duration(g.randF()*float64(g.high-g.low))
	until := g.now().Add(window)
	if until.After(g.openUntil) {
		g.openUntil = until
	}
	return g.openUntil
}

// Remaining returns how long the gate stays open, or zero when closed.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r := g.openUntil.Sub(g.now()); r > 0 {
		return r
	}
	return 0
}
