package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationsRetried *prometheus.CounterVec
	DeadLettered         *prometheus.CounterVec
	SendLatency          *prometheus.HistogramVec
	OutboxBacklog        prometheus.Gauge
	BreakerOpen          prometheus.Gauge
	RemindersArmed       prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successfully delivered notifications.",
		}, []string{"kind"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of terminally failed notifications.",
		}, []string{"kind", "class"}),

		NotificationsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_retried_total",
			Help: "Total number of send attempts rescheduled for retry.",
		}, []string{"kind"}),

		DeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dead_lettered_total",
			Help: "Total number of broker messages moved to the dead-letter stream.",
		}, []string{"kind"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_send_seconds",
			Help:    "Latency from claim to transport ack for one delivery.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		OutboxBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Current number of pending outbox rows.",
		}),

		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "send_breaker_open",
			Help: "1 while the shared send circuit breaker is open, else 0.",
		}),

		RemindersArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reminder_timers_armed",
			Help: "Current number of armed in-process reminder timers.",
		}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationsRetried,
		m.DeadLettered,
		m.SendLatency,
		m.OutboxBacklog,
		m.BreakerOpen,
		m.RemindersArmed,
	)

	return m
}

// WorkerHooks returns the metric callbacks expected by the worker.
// Centralises the prometheus observation calls so worker.go stays
// import-free.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnSent: func(kind domain.Kind, latency time.Duration) {
			m.NotificationsSent.WithLabelValues(string(kind)).Inc()
			m.SendLatency.WithLabelValues(string(kind)).Observe(latency.Seconds())
		},
		OnFailed: func(kind domain.Kind, class domain.FailureClass) {
			m.NotificationsFailed.WithLabelValues(string(kind), string(class)).Inc()
		},
		OnRetried: func(kind domain.Kind) {
			m.NotificationsRetried.WithLabelValues(string(kind)).Inc()
		},
		OnDeadLetter: func(kind domain.Kind) {
			m.DeadLettered.WithLabelValues(string(kind)).Inc()
		},
	}
}
