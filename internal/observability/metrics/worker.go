package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	queueLag      *prometheus.HistogramVec
	reviewQueue   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "worker",
			Name:      "consult_events_total",
			Help:      "Total handled consult events by status.",
		},
		[]string{"service", "status"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myvet",
			Subsystem: "worker",
			Name:      "consult_event_duration_seconds",
			Help:      "Consult event handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myvet",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between consult creation and event handling.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	reviewQueue := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "worker",
			Name:      "review_queue_total",
			Help:      "Consults flagged for professional review by note class.",
		},
		[]string{"service", "note"},
	)

	registry.MustRegister(eventsTotal, eventDuration, queueLag, reviewQueue)

	return &WorkerMetrics{
		registry:      registry,
		eventsTotal:   eventsTotal,
		eventDuration: eventDuration,
		queueLag:      queueLag,
		reviewQueue:   reviewQueue,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) FinishEvent(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(service, status).Inc()
	m.eventDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordReviewFlag(service, note string) {
	if note == "" {
		note = "none"
	}
	m.reviewQueue.WithLabelValues(service, note).Inc()
}
