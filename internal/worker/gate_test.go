package worker

import (
	"testing"
	"time"
)

func testGate(now time.Time, r float64) *Gate {
	g := NewGate(30*time.Second, 60*time.Second)
	g.now = func() time.Time { return now }
	g.randF = fixedRand(r)
	return g
}

func TestGate_ClosedByDefault(t *testing.T) {
	g := NewGate(30*time.Second, 60*time.Second)
	if r := g.Remaining(); r != 0 {
		t.Fatalf("fresh gate should be closed, Remaining() = %v", r)
	}
}

func TestGate_TripOpensWithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	g := testGate(now, 0)
	if until := g.Trip(); !until.Equal(now.Add(30 * time.Second)) {
		t.Errorf("rand=0: open until %v, want low bound", until)
	}

	g = testGate(now, 1)
	if until := g.Trip(); !until.Equal(now.Add(60 * time.Second)) {
		t.Errorf("rand=1: open until %v, want high bound", until)
	}
}

func TestGate_RepeatedTripsOnlyExtend(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := testGate(now, 1)

	first := g.Trip()

	// A later trip with a shorter window must not pull the deadline in.
	g.randF = fixedRand(0)
	second := g.Trip()
	if second.Before(first) {
		t.Fatalf("trip shrank the window: %v -> %v", first, second)
	}
}

func TestGate_RemainingCountsDown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := testGate(now, 0)
	g.Trip()

	if r := g.Remaining(); r != 30*time.Second {
		t.Errorf("Remaining() = %v, want 30s", r)
	}

	g.now = func() time.Time { return now.Add(31 * time.Second) }
	if r := g.Remaining(); r != 0 {
		t.Errorf("expired gate Remaining() = %v, want 0", r)
	}
}
