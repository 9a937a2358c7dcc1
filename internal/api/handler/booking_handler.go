package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/hireloop/interview-notifier/internal/api/middleware"
)

// BookingTransitions is the slice of the booking service the HTTP layer
// needs.
type BookingTransitions interface {
	Confirm(ctx context.Context, bookingID string) error
	Release(ctx context.Context, bookingID string) error
}

// BookingHandler exposes the booking-transition webhooks called by the
// scheduling surface when a slot is taken or freed.
type BookingHandler struct {
	svc    BookingTransitions
	logger *zap.Logger
}

func NewBookingHandler(svc BookingTransitions, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Confirm handles POST /api/v1/bookings/{id}/confirm
//
// @Summary  Notify that a booking was confirmed
// @Tags     bookings
// @Param    id  path  string  true  "Booking ID"
// @Success  202
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Confirm(r.Context(), id); err != nil {
		h.logger.Warn("booking confirm failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("booking_id", id),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Release handles POST /api/v1/bookings/{id}/release
//
// @Summary  Notify that a booking was released
// @Tags     bookings
// @Param    id  path  string  true  "Booking ID"
// @Success  202
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/bookings/{id}/release [post]
func (h *BookingHandler) Release(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Release(r.Context(), id); err != nil {
		h.logger.Warn("booking release failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("booking_id", id),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
