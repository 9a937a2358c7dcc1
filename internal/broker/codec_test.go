package broker

import (
	"testing"
	"time"
)

func TestCodec_WireFormat(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	values := encodePayload(Payload{
		OutboxID:    "out-1",
		Kind:        "confirm_2h",
		BookingID:   "bk-1",
		RecipientID: "cand-1",
		Body:        []byte(`{"event_name":"Intro Day"}`),
		Attempt:     2,
		MaxAttempts: 4,
		CreatedAt:   created,
	})

	// Every value on the wire is a string: numbers are decimal strings,
	// timestamps fixed-point seconds.
	if got := values[fieldAttempt]; got != "2" {
		t.Errorf("attempt on wire = %v, want \"2\"", got)
	}
	if got := values[fieldCreatedAt]; got != "1735689600.000000" {
		t.Errorf("created_at on wire = %v, want \"1735689600.000000\"", got)
	}

	p, err := decodePayload(values)
	if err != nil {
		t.Fatal(err)
	}
	if p.OutboxID != "out-1" || p.Attempt != 2 || p.MaxAttempts != 4 {
		t.Errorf("decoded payload mismatch: %+v", p)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", p.CreatedAt, created)
	}
	if string(p.Body) != `{"event_name":"Intro Day"}` {
		t.Errorf("body = %s", p.Body)
	}
}

func TestCodec_SubsecondPrecisionSurvives(t *testing.T) {
	at := time.Date(2025, 3, 15, 10, 30, 0, 250000000, time.UTC)
	back, err := parseUnix(formatUnix(at))
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(at) {
		t.Errorf("round trip: %v != %v", back, at)
	}
}

func TestCodec_MalformedNumberRejected(t *testing.T) {
	values := encodePayload(Payload{OutboxID: "out-1"})
	values[fieldAttempt] = "not-a-number"

	if _, err := decodePayload(values); err == nil {
		t.Fatal("expected decode error for malformed attempt")
	}
}

// Absent optional fields decode to zero values rather than erroring, so
// older producers stay compatible.
func TestCodec_MissingFieldsAreZero(t *testing.T) {
	p, err := decodePayload(map[string]any{
		fieldOutboxID: "out-1",
		fieldKind:     "reminder_24h",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Attempt != 0 || !p.CreatedAt.IsZero() || p.Body != nil {
		t.Errorf("expected zero values, got %+v", p)
	}
}
