package domain

import "time"

// BookingStatus mirrors the slot lifecycle owned by the scheduling surface.
// Only the transitions that produce notifications are of interest here.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingReleased  BookingStatus = "released"
)

// Booking is the read-only collaborator view of a scheduled interview or
// intro-day slot. The CRUD surface that owns these rows is external; this
// service only reads them to compute reminder plans and render messages.
type Booking struct {
	ID          string        `json:"id"`
	CandidateID string        `json:"candidate_id"`
	RecruiterID string        `json:"recruiter_id"`
	EventName   string        `json:"event_name"`
	StartsAt    time.Time     `json:"starts_at"`
	Timezone    string        `json:"timezone"` // IANA name, e.g. "Europe/Moscow"
	Locale      string        `json:"locale"`
	Status      BookingStatus `json:"status"`
}

// Location resolves the booking's IANA timezone, falling back to UTC when
// the name is empty or unknown rather than failing the whole plan.
func (b *Booking) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
