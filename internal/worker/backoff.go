package worker

import (
	"math/rand/v2"
	"time"
)

const jitterFraction = 0.15

// Backoff computes exponential retry delays. The pre-jitter delay for
// attempt n (1-based) is min(Max, Base * 2^(n-1)), which is non-decreasing
// in n.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// randF is replaceable in tests; defaults to rand.Float64.
	randF func() float64
}

func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, randF: rand.Float64}
}

// Delay returns the unjittered delay for the given attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Jittered applies ±15% jitter to Delay(attempt) and clamps the result to
// at least hint, so a transport-provided backoff hint is always honored.
func (b Backoff) Jittered(attempt int, hint time.Duration) time.Duration {
	randF := b.randF
	if randF == nil {
		randF = rand.Float64
	}

	d := b.Delay(attempt)
	jitter := 1 + jitterFraction*(2*randF()-1)
	d = time.Duration(float64(d) * jitter)

	if d < hint {
		d = hint
	}
	return d
}
