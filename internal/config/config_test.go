package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notifier")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BrokerMode != BrokerMemory {
		t.Errorf("default broker mode = %q", cfg.BrokerMode)
	}
	if cfg.QuietGrace != 15*time.Minute {
		t.Errorf("default quiet grace = %v", cfg.QuietGrace)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}

// With zero grace a shifted reminder would land exactly on the quiet
// window's start minute, which is inside the window.
func TestLoad_RejectsZeroQuietGrace(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notifier")
	t.Setenv("QUIET_GRACE", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for zero QUIET_GRACE")
	}
}

// A disabled window (start == end) has no boundary to shift onto, so zero
// grace is fine there.
func TestLoad_ZeroGraceAllowedWhenQuietHoursDisabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notifier")
	t.Setenv("QUIET_START_HOUR", "8")
	t.Setenv("QUIET_END_HOUR", "8")
	t.Setenv("QUIET_GRACE", "0s")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_RejectsUnknownBrokerMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notifier")
	t.Setenv("BROKER_MODE", "carrier_pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown BROKER_MODE")
	}
}
