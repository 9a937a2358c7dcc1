package template

import "github.com/hireloop/interview-notifier/internal/domain"

// DefaultCatalog returns a catalog seeded with the built-in message set.
// Every kind has at least an English locale-level fallback so a render
// miss can only come from an unregistered kind.
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	seed := []struct {
		kind    domain.Kind
		locale  string
		channel domain.Channel
		scope   domain.Scope
		version int
		body    string
	}{
		{domain.KindBookingConfirmed, "en", "", "", 1,
			"Your interview {{.EventName}} is confirmed for {{.StartsLocal}}."},
		{domain.KindBookingConfirmed, "en", domain.ChannelChat, domain.ScopeRecruiter, 1,
			"Candidate confirmed for {{.EventName}} at {{.StartsLocal}}."},
		{domain.KindBookingReleased, "en", "", "", 1,
			"The slot for {{.EventName}} on {{.StartsLocal}} has been released."},
		{domain.KindReminder24h, "en", "", "", 1,
			"Reminder: {{.EventName}} is tomorrow at {{.StartsLocal}}."},
		{domain.KindConfirm6h, "en", "", "", 1,
			"{{.EventName}} starts at {{.StartsLocal}}. Please confirm you will attend."},
		{domain.KindConfirm3h, "en", "", "", 1,
			"{{.EventName}} starts in a few hours at {{.StartsLocal}}. Please confirm."},
		{domain.KindConfirm2h, "en", "", "", 1,
			"{{.EventName}} starts soon, at {{.StartsLocal}}. See you there!"},
		{domain.KindReminder24h, "ru", "", "", 1,
			"Напоминание: {{.EventName}} завтра в {{.StartsLocal}}."},
	}

	for _, s := range seed {
		// Bodies are compile-time constants; a parse failure is a
		// programming error.
		if err := c.Register(s.kind, s.locale, s.channel, s.scope, s.version, s.body); err != nil {
			panic(err)
		}
	}
	return c
}
