package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used throughout the application.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnsupportedKind = errors.New("unsupported notification kind")
	ErrAlreadySent     = errors.New("notification already sent")
	ErrJobConsumed     = errors.New("reminder job already consumed")
	ErrNotClaimed      = errors.New("outbox entry not claimed")
)

// FailureClass partitions send failures into the categories the worker
// inspects to choose between retry-schedule and terminal-fail.
type FailureClass string

const (
	// FailureTransient covers timeouts, server errors, and explicit
	// backoff hints. Retried with backoff; trips the circuit breaker.
	FailureTransient FailureClass = "transient"
	// FailurePermanent covers malformed recipients and bad requests.
	// Terminal, never retried.
	FailurePermanent FailureClass = "permanent"
	// FailureConfig covers missing templates and unknown kinds. Terminal;
	// an operator must fix configuration.
	FailureConfig FailureClass = "config"
	// FailureExhausted marks a transient failure whose attempt budget ran
	// out. Identical in effect to a permanent failure.
	FailureExhausted FailureClass = "exhausted"
)

// SendError is the typed failure returned by the transport and inspected
// by the worker. RetryAfter carries a transport-provided backoff hint
// (zero when the transport gave none).
type SendError struct {
	Class      FailureClass
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return string(e.Class) + " send failure"
	}
	return fmt.Sprintf("%s send failure: %v", e.Class, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether the failure should re-enter the retry loop.
func (e *SendError) Retryable() bool { return e.Class == FailureTransient }

// Transient wraps err as a retryable failure.
func Transient(err error) *SendError {
	return &SendError{Class: FailureTransient, Err: err}
}

// RateLimited wraps err as a retryable failure carrying the transport's
// backoff hint.
func RateLimited(err error, retryAfter time.Duration) *SendError {
	return &SendError{Class: FailureTransient, RetryAfter: retryAfter, Err: err}
}

// Permanent wraps err as a terminal failure.
func Permanent(err error) *SendError {
	return &SendError{Class: FailurePermanent, Err: err}
}

// ConfigFailure wraps err as a terminal configuration failure.
func ConfigFailure(err error) *SendError {
	return &SendError{Class: FailureConfig, Err: err}
}

// ClassifySend extracts the SendError from err, defaulting to transient for
// unclassified failures (network errors from the HTTP layer arrive unwrapped).
func ClassifySend(err error) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return Transient(err)
}
