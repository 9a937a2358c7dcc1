package broker

import (
	"fmt"
	"strconv"
	"time"
)

// Stream entries are flat string-keyed maps: numeric fields are decimal
// strings, timestamps are fixed-point seconds strings, and the body is
// carried as raw JSON. Keep this format stable: operators read it with
// redis-cli and the consumer group may span deployed versions.

const (
	fieldOutboxID    = "outbox_id"
	fieldKind        = "kind"
	fieldBookingID   = "booking_id"
	fieldRecipientID = "recipient_id"
	fieldBody        = "body"
	fieldAttempt     = "attempt"
	fieldMaxAttempts = "max_attempts"
	fieldCreatedAt   = "created_at"
	fieldNotBefore   = "not_before"
	fieldReason      = "reason"
	fieldFailedAt    = "failed_at"
)

func encodePayload(p Payload) map[string]any {
	return map[string]any{
		fieldOutboxID:    p.OutboxID,
		fieldKind:        p.Kind,
		fieldBookingID:   p.BookingID,
		fieldRecipientID: p.RecipientID,
		fieldBody:        string(p.Body),
		fieldAttempt:     strconv.Itoa(p.Attempt),
		fieldMaxAttempts: strconv.Itoa(p.MaxAttempts),
		fieldCreatedAt:   formatUnix(p.CreatedAt),
		fieldNotBefore:   formatUnix(p.NotBefore),
	}
}

func decodePayload(values map[string]any) (Payload, error) {
	var p Payload
	var err error

	p.OutboxID = stringField(values, fieldOutboxID)
	p.Kind = stringField(values, fieldKind)
	p.BookingID = stringField(values, fieldBookingID)
	p.RecipientID = stringField(values, fieldRecipientID)
	if body := stringField(values, fieldBody); body != "" {
		p.Body = []byte(body)
	}

	if p.Attempt, err = intField(values, fieldAttempt); err != nil {
		return Payload{}, err
	}
	if p.MaxAttempts, err = intField(values, fieldMaxAttempts); err != nil {
		return Payload{}, err
	}
	if p.CreatedAt, err = timeField(values, fieldCreatedAt); err != nil {
		return Payload{}, err
	}
	if p.NotBefore, err = timeField(values, fieldNotBefore); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// formatUnix renders a timestamp as fixed-point seconds with microsecond
// precision, e.g. "1735689600.000000".
func formatUnix(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// unixScore is the numeric twin of formatUnix, used as the delayed
// sorted-set score.
func unixScore(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func parseUnix(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(int64(f * 1e6)).UTC(), nil
}

func stringField(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}

func intField(values map[string]any, key string) (int, error) {
	s := stringField(values, key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return n, nil
}

func timeField(values map[string]any, key string) (time.Time, error) {
	s := stringField(values, key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := parseUnix(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", key, err)
	}
	return t, nil
}
