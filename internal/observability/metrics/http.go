package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRetrievalDuration *prometheus.HistogramVec
	ragConfidence        *prometheus.HistogramVec
	ragRefusalsTotal     *prometheus.CounterVec
	ragFallbacksTotal    *prometheus.CounterVec
	ragFailuresTotal     *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRetrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Hybrid retrieval duration in seconds, embedding included.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"service"},
	)
	ragConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "retrieval_confidence",
			Help:      "Distribution of retrieval confidence per query.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	ragRefusalsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "refusals_total",
			Help:      "Total refused questions by reason.",
		},
		[]string{"service", "reason"},
	)
	ragFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "generation_fallbacks_total",
			Help:      "Total answers served from the extractive fallback.",
		},
		[]string{"service"},
	)
	ragFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "retrieval_failures_total",
			Help:      "Total queries that failed because retrieval was unavailable.",
		},
		[]string{"service"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of returned chunks per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRetrievalDuration,
		ragConfidence,
		ragRefusalsTotal,
		ragFallbacksTotal,
		ragFailuresTotal,
		ragRetrievedChunks,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ragRetrievalDuration: ragRetrievalDuration,
		ragConfidence:        ragConfidence,
		ragRefusalsTotal:     ragRefusalsTotal,
		ragFallbacksTotal:    ragFallbacksTotal,
		ragFailuresTotal:     ragFailuresTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/profiles/"):
		return "/v1/profiles/{profile_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRetrievedChunks(service, endpoint string, count int) {
	m.ragRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(count))
}

// Advice returns a recorder bound to service for the advise use case.
func (m *HTTPServerMetrics) Advice(service string) *AdviceMetrics {
	return &AdviceMetrics{m: m, service: service}
}

type AdviceMetrics struct {
	m       *HTTPServerMetrics
	service string
}

func (a *AdviceMetrics) RecordRetrieval(duration time.Duration, confidence float64) {
	a.m.ragRetrievalDuration.WithLabelValues(a.service).Observe(duration.Seconds())
	a.m.ragConfidence.WithLabelValues(a.service).Observe(confidence)
}

func (a *AdviceMetrics) RecordRefusal(reason domain.AnswerOutcome) {
	if reason == "" {
		reason = "unknown"
	}
	a.m.ragRefusalsTotal.WithLabelValues(a.service, string(reason)).Inc()
}

func (a *AdviceMetrics) RecordGenerationFallback() {
	a.m.ragFallbacksTotal.WithLabelValues(a.service).Inc()
}

func (a *AdviceMetrics) RecordRetrievalFailure() {
	a.m.ragFailuresTotal.WithLabelValues(a.service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
