package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hireloop/interview-notifier/internal/domain"
)

func TestClassifySend_ExtractsWrappedSendError(t *testing.T) {
	inner := domain.Permanent(errors.New("blocked"))
	wrapped := fmt.Errorf("send to gateway: %w", inner)

	se := domain.ClassifySend(wrapped)
	if se.Class != domain.FailurePermanent {
		t.Errorf("class = %s, want permanent", se.Class)
	}
	if se.Retryable() {
		t.Error("permanent failure must not be retryable")
	}
}

// Unclassified errors (raw network failures) default to transient so a
// forgotten wrap never turns an outage into dropped notifications.
func TestClassifySend_DefaultsToTransient(t *testing.T) {
	se := domain.ClassifySend(errors.New("connection reset"))
	if se.Class != domain.FailureTransient {
		t.Errorf("class = %s, want transient", se.Class)
	}
	if !se.Retryable() {
		t.Error("transient failure must be retryable")
	}
}

func TestRateLimited_CarriesHint(t *testing.T) {
	se := domain.RateLimited(errors.New("429"), 30*time.Second)
	if !se.Retryable() {
		t.Error("rate-limited failure must be retryable")
	}
	if se.RetryAfter != 30*time.Second {
		t.Errorf("retry after = %v", se.RetryAfter)
	}
}

func TestKind_Offsets(t *testing.T) {
	if _, ok := domain.KindBookingConfirmed.Offset(); ok {
		t.Error("lifecycle kind must not carry a reminder offset")
	}
	d, ok := domain.KindConfirm2h.Offset()
	if !ok || d != 2*time.Hour {
		t.Errorf("confirm_2h offset = %v, %v", d, ok)
	}
}
