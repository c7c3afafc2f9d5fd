package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics exposes Prometheus signals for the domain event dispatcher.
type OutboxMetrics struct {
	dispatch      *prometheus.CounterVec
	dispatchTime  *prometheus.HistogramVec
	backlog       prometheus.Gauge
	handlerErrors *prometheus.CounterVec
}

func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	m := &OutboxMetrics{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partnerhub_outbox_dispatch_total",
			Help: "Counts dispatcher batches by status.",
		}, []string{"status"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partnerhub_outbox_dispatch_duration_seconds",
			Help:    "Dispatcher batch durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "partnerhub_outbox_backlog",
			Help: "Number of unpublished events seen by the last batch.",
		}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partnerhub_event_handler_errors_total",
			Help: "Counts handler errors by event type.",
		}, []string{"event_type"}),
	}
	if registerer != nil {
		registerer.MustRegister(m.dispatch, m.dispatchTime, m.backlog, m.handlerErrors)
	}
	return m
}

// ObserveBatch records one dispatcher pass.
func (m *OutboxMetrics) ObserveBatch(status string, backlog int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(status).Inc()
	m.dispatchTime.WithLabelValues(status).Observe(elapsed.Seconds())
	m.backlog.Set(float64(backlog))
}

func (m *OutboxMetrics) HandlerError(eventType string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(eventType).Inc()
}
