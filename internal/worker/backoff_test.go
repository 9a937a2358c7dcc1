package worker

import (
	"testing"
	"time"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestBackoff_DelayDoublesAndCaps(t *testing.T) {
	b := NewBackoff(30*time.Second, 30*time.Minute)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{7, 32 * time.Minute}, // would exceed the cap
	}
	for _, tc := range cases {
		got := b.Delay(tc.attempt)
		want := tc.want
		if want > b.Max {
			want = b.Max
		}
		if got != want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, want)
		}
	}

	// Non-decreasing across the whole range.
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := b.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoff_DelayClampsBadAttempt(t *testing.T) {
	b := NewBackoff(30*time.Second, 30*time.Minute)
	if got := b.Delay(0); got != 30*time.Second {
		t.Errorf("Delay(0) = %v, want base", got)
	}
	if got := b.Delay(-3); got != 30*time.Second {
		t.Errorf("Delay(-3) = %v, want base", got)
	}
}

func TestBackoff_JitteredStaysWithinBounds(t *testing.T) {
	b := NewBackoff(time.Minute, time.Hour)

	b.randF = fixedRand(0) // lowest jitter: -15%
	if got, want := b.Jittered(1, 0), time.Duration(float64(time.Minute)*0.85); got != want {
		t.Errorf("low jitter = %v, want %v", got, want)
	}

	b.randF = fixedRand(1) // highest jitter: +15%
	if got, want := b.Jittered(1, 0), time.Duration(float64(time.Minute)*1.15); got != want {
		t.Errorf("high jitter = %v, want %v", got, want)
	}

	b.randF = fixedRand(0.5) // midpoint: no jitter
	if got := b.Jittered(1, 0); got != time.Minute {
		t.Errorf("mid jitter = %v, want %v", got, time.Minute)
	}
}

func TestBackoff_JitteredHonorsHint(t *testing.T) {
	b := NewBackoff(time.Second, time.Hour)
	b.randF = fixedRand(0)

	hint := 10 * time.Second
	if got := b.Jittered(1, hint); got != hint {
		t.Errorf("Jittered with hint = %v, want clamped to %v", got, hint)
	}

	// A hint below the computed delay changes nothing.
	if got := b.Jittered(10, time.Millisecond); got < time.Second {
		t.Errorf("small hint should not reduce delay, got %v", got)
	}
}
