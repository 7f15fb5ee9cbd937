package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal *prometheus.CounterVec
	queueLag    *prometheus.HistogramVec
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "worker",
			Name:      "interaction_events_total",
			Help:      "Total persisted interaction events by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between event publication and persistence.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(eventsTotal, queueLag)

	return &WorkerMetrics{
		registry:    registry,
		eventsTotal: eventsTotal,
		queueLag:    queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveEvent(service, kind string, lag time.Duration, err error) {
	if kind == "" {
		kind = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(service, kind, status).Inc()
	if lag >= 0 {
		m.queueLag.WithLabelValues(service, kind).Observe(lag.Seconds())
	}
}
