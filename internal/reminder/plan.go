// Package reminder computes and persists timezone-aware reminder instants
// for bookings, re-arming them across process restarts.
package reminder

import (
	"sort"
	"time"

	"github.com/hireloop/interview-notifier/internal/domain"
)

// QuietHours is a local time-of-day window during which reminders are not
// sent. A reminder landing inside the window is shifted to just before
// the window opens. StartHour == EndHour disables the window.
type QuietHours struct {
	StartHour int
	EndHour   int
	Grace     time.Duration
}

// Contains reports whether the local instant falls inside the window.
// Windows may span midnight (22:00-08:00).
func (q QuietHours) Contains(local time.Time) bool {
	if q.StartHour == q.EndHour {
		return false
	}
	mins := local.Hour()*60 + local.Minute()
	start := q.StartHour * 60
	end := q.EndHour * 60
	if start < end {
		return mins >= start && mins < end
	}
	return mins >= start || mins < end
}

// Shift moves a local instant inside the window to the window's opening
// boundary minus the grace period, so the reminder lands just before
// quiet hours begin. The result is strictly earlier than the input and
// outside the window.
func (q QuietHours) Shift(local time.Time) time.Time {
	boundary := time.Date(local.Year(), local.Month(), local.Day(),
		q.StartHour, 0, 0, 0, local.Location())
	if boundary.After(local) {
		// Early-morning tail of a window that spans midnight: the window
		// opened the previous day.
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary.Add(-q.Grace)
}

// Plan is one computed reminder instant for a booking.
type Plan struct {
	Kind   domain.Kind
	Offset time.Duration
	At     time.Time
}

// ComputePlans derives the reminder plans for a booking: one per reminder
// kind, quiet-hours shifted, deduplicated so that of several plans
// collapsing onto the same instant only the one with the greatest lead
// time survives. Plans are split into already due (at <= now), returned
// in lead-time order for synchronous firing, and future plans to persist.
func ComputePlans(b *domain.Booking, quiet QuietHours, now time.Time) (due, future []Plan) {
	loc := b.Location()
	startLocal := b.StartsAt.In(loc)

	byInstant := make(map[int64]Plan)
	for kind, offset := range domain.ReminderOffsets {
		target := startLocal.Add(-offset)
		if quiet.Contains(target) {
			target = quiet.Shift(target)
		}
		key := target.Unix()
		if existing, ok := byInstant[key]; ok && existing.Offset >= offset {
			continue
		}
		byInstant[key] = Plan{Kind: kind, Offset: offset, At: target}
	}

	plans := make([]Plan, 0, len(byInstant))
	for _, p := range byInstant {
		plans = append(plans, p)
	}
	// Longest lead time first; for due plans this is also fire order.
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Offset > plans[j].Offset
	})

	for _, p := range plans {
		if !p.At.After(now) {
			due = append(due, p)
		} else {
			future = append(future, p)
		}
	}
	return due, future
}
