// Package api wires the HTTP surface of the notifier: booking transition
// webhooks, probe endpoints and the metrics scrape.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hireloop/interview-notifier/internal/api/handler"
	apimw "github.com/hireloop/interview-notifier/internal/api/middleware"
)

// Deps carries everything the router needs. Fields map one-to-one to
// handler constructor arguments.
type Deps struct {
	Bookings    handler.BookingTransitions
	Outbox      handler.PendingCounter
	Reminders   handler.TimerCounter
	Breaker     handler.BreakerProbe
	DeadLetters handler.DeadLetterCounter
	Probes      map[string]handler.Pinger
	Registry    prometheus.Gatherer
	Logger      *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(d.Logger))

	bh := handler.NewBookingHandler(d.Bookings, d.Logger)
	ph := handler.NewPipelineHandler(d.Outbox, d.Reminders, d.Breaker, d.DeadLetters)
	hh := handler.NewHealthHandler(d.Probes)

	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/bookings/{id}/confirm", bh.Confirm)
		r.Post("/bookings/{id}/release", bh.Release)

		// JSON pipeline snapshot for operators
		r.Get("/pipeline", ph.GetPipeline)
	})

	return r
}
