package worker

import (
	"context"
	"fmt"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/repository"
	"github.com/hireloop/interview-notifier/internal/template"
)

// bookingHandler is the shared handler implementation for every
// booking-derived kind: it loads the booking, derives the recipient's
// scope from which side of the booking they are on, and exposes the
// event details to the template.
type bookingHandler struct {
	bookings repository.BookingRepository
}

// RegisterBookingHandlers binds the booking-backed handler to every
// supported kind.
func RegisterBookingHandlers(w *Worker, bookings repository.BookingRepository) {
	h := &bookingHandler{bookings: bookings}
	for _, kind := range []domain.Kind{
		domain.KindBookingConfirmed,
		domain.KindBookingReleased,
		domain.KindReminder24h,
		domain.KindConfirm6h,
		domain.KindConfirm3h,
		domain.KindConfirm2h,
	} {
		w.RegisterHandler(kind, h)
	}
}

func (h *bookingHandler) Prepare(ctx context.Context, e *domain.OutboxEntry) (*SendPlan, error) {
	b, err := h.bookings.GetByID(ctx, e.BookingID)
	if err != nil {
		// A vanished booking cannot be fixed by retrying.
		return nil, domain.Permanent(fmt.Errorf("booking %s: %w", e.BookingID, err))
	}

	scope := domain.ScopeCandidate
	if e.RecipientID == b.RecruiterID {
		scope = domain.ScopeRecruiter
	}

	startsLocal := b.StartsAt.In(b.Location()).Format("Mon, 2 Jan 15:04")

	return &SendPlan{
		RecipientID: e.RecipientID,
		Locale:      b.Locale,
		Channel:     domain.ChannelChat,
		Scope:       scope,
		TemplateCtx: template.Context{
			"EventName":   b.EventName,
			"StartsLocal": startsLocal,
			"BookingID":   b.ID,
		},
	}, nil
}
