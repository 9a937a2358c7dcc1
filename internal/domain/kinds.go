package domain

import "time"

// Kind identifies a logical notification type. Reminder kinds carry a
// lead-time offset relative to the event start; lifecycle kinds do not.
type Kind string

const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingReleased  Kind = "booking_released"
	KindReminder24h      Kind = "reminder_24h"
	KindConfirm6h        Kind = "confirm_6h"
	KindConfirm3h        Kind = "confirm_3h"
	KindConfirm2h        Kind = "confirm_2h"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindBookingConfirmed, KindBookingReleased,
		KindReminder24h, KindConfirm6h, KindConfirm3h, KindConfirm2h:
		return true
	}
	return false
}

// ReminderOffsets maps each reminder kind to how long before the event
// start it should fire. Iteration order does not matter; plan computation
// sorts by lead time.
var ReminderOffsets = map[Kind]time.Duration{
	KindReminder24h: 24 * time.Hour,
	KindConfirm6h:   6 * time.Hour,
	KindConfirm3h:   3 * time.Hour,
	KindConfirm2h:   2 * time.Hour,
}

// Offset returns the reminder lead time for k, or false if k is not a
// reminder kind.
func (k Kind) Offset() (time.Duration, bool) {
	d, ok := ReminderOffsets[k]
	return d, ok
}

// Channel is the delivery channel for a rendered message.
type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelSMS  Channel = "sms"
)

// Scope distinguishes recipient roles when resolving templates.
type Scope string

const (
	ScopeCandidate Scope = "candidate"
	ScopeRecruiter Scope = "recruiter"
)
