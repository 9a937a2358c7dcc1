package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/interview-notifier/internal/domain"
)

var defaultQuiet = QuietHours{StartHour: 22, EndHour: 8, Grace: 15 * time.Minute}

func booking(startsAt time.Time, tz string) *domain.Booking {
	return &domain.Booking{
		ID:          "bk-1",
		CandidateID: "cand-1",
		RecruiterID: "rec-1",
		EventName:   "Backend Interview",
		StartsAt:    startsAt,
		Timezone:    tz,
		Locale:      "en",
		Status:      domain.BookingConfirmed,
	}
}

func TestQuietHours_ContainsSpansMidnight(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		hour, min int
		want      bool
	}{
		{21, 59, false},
		{22, 0, true},
		{23, 30, true},
		{0, 0, true},
		{7, 59, true},
		{8, 0, false},
		{12, 0, false},
	}
	for _, tc := range cases {
		at := time.Date(2025, 6, 10, tc.hour, tc.min, 0, 0, loc)
		assert.Equal(t, tc.want, defaultQuiet.Contains(at), "at %02d:%02d", tc.hour, tc.min)
	}
}

func TestQuietHours_DisabledWindow(t *testing.T) {
	q := QuietHours{StartHour: 8, EndHour: 8}
	assert.False(t, q.Contains(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)))
}

func TestQuietHours_ShiftEveningTarget(t *testing.T) {
	// 23:30 falls in the evening head of the window; shift to 21:45 the
	// same day.
	at := time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	shifted := defaultQuiet.Shift(at)

	assert.Equal(t, time.Date(2025, 6, 10, 21, 45, 0, 0, time.UTC), shifted)
	assert.True(t, shifted.Before(at))
	assert.False(t, defaultQuiet.Contains(shifted))
}

func TestQuietHours_ShiftEarlyMorningTarget(t *testing.T) {
	// 03:00 falls in the tail of a window that opened at 22:00 the
	// previous evening; shift to 21:45 of that previous day.
	at := time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC)
	shifted := defaultQuiet.Shift(at)

	assert.Equal(t, time.Date(2025, 6, 10, 21, 45, 0, 0, time.UTC), shifted)
	assert.True(t, shifted.Before(at))
	assert.False(t, defaultQuiet.Contains(shifted))
}

func TestComputePlans_MoscowDaytimeEventUnshifted(t *testing.T) {
	// Event at 2025-01-01 12:00 UTC = 15:00 Moscow. Every reminder target
	// lands in daytime Moscow hours, so none shifts.
	b := booking(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), "Europe/Moscow")
	now := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)

	due, future := ComputePlans(b, defaultQuiet, now)
	require.Empty(t, due)
	require.Len(t, future, 4)

	// Longest lead first.
	assert.Equal(t, domain.KindReminder24h, future[0].Kind)
	assert.True(t, future[0].At.Equal(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Add(-24*time.Hour)))
	assert.Equal(t, domain.KindConfirm2h, future[3].Kind)
}

func TestComputePlans_NightTargetsShiftAndCollapse(t *testing.T) {
	// Event at 02:00 local. The 6h/3h/2h targets (20:00, 23:00, 00:00)
	// put two of them inside the quiet window; both shift to 21:45 and
	// collapse into the one with the greater lead time.
	b := booking(time.Date(2025, 6, 11, 2, 0, 0, 0, time.UTC), "UTC")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, future := ComputePlans(b, defaultQuiet, now)

	byKind := map[domain.Kind]Plan{}
	for _, p := range future {
		byKind[p.Kind] = p
	}

	// 24h target 02:00 previous day: quiet, shifted to 21:45 two days before.
	require.Contains(t, byKind, domain.KindReminder24h)
	assert.Equal(t, time.Date(2025, 6, 9, 21, 45, 0, 0, time.UTC), byKind[domain.KindReminder24h].At)

	// 6h target 20:00: outside the window, unshifted.
	require.Contains(t, byKind, domain.KindConfirm6h)
	assert.Equal(t, time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC), byKind[domain.KindConfirm6h].At)

	// 3h (23:00) and 2h (00:00) both shift to 21:45 on June 10; only the
	// 3h plan, the greater lead time, survives.
	require.Contains(t, byKind, domain.KindConfirm3h)
	assert.Equal(t, time.Date(2025, 6, 10, 21, 45, 0, 0, time.UTC), byKind[domain.KindConfirm3h].At)
	assert.NotContains(t, byKind, domain.KindConfirm2h)

	require.Len(t, future, 3)
}

func TestComputePlans_SplitsPastDueFromFuture(t *testing.T) {
	b := booking(time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC), "UTC")
	// Between the 6h and 3h targets.
	now := time.Date(2025, 6, 11, 7, 0, 0, 0, time.UTC)

	due, future := ComputePlans(b, defaultQuiet, now)
	require.Len(t, due, 2)
	require.Len(t, future, 2)

	// Due plans come back in lead-time order for synchronous firing.
	assert.Equal(t, domain.KindReminder24h, due[0].Kind)
	assert.Equal(t, domain.KindConfirm6h, due[1].Kind)
}

func TestComputePlans_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	b := booking(time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC), "Mars/Olympus")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, future := ComputePlans(b, defaultQuiet, now)
	require.Len(t, future, 4)
	assert.True(t, future[0].At.Equal(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)))
}
