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
)

// HTTPServerMetrics is the private registry for the API process: request
// plumbing plus triage pipeline observations.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	consultsTotal      *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
	retrievalMode      *prometheus.CounterVec
	evidenceRetrieved  *prometheus.HistogramVec
	indexedDocuments   prometheus.Gauge
	reindexTotal       prometheus.Counter
	fallbackNotesTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myvet",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "myvet",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	consultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "triage",
			Name:      "consults_total",
			Help:      "Completed triage submissions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myvet",
			Subsystem: "triage",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end triage pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	retrievalMode := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "triage",
			Name:      "retrieval_mode_total",
			Help:      "Triage submissions by retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	evidenceRetrieved := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "myvet",
			Subsystem: "triage",
			Name:      "evidence_sources",
			Help:      "Distribution of evidence sources per submission.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
		[]string{"service"},
	)
	indexedDocuments := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "myvet",
			Subsystem: "index",
			Name:      "documents",
			Help:      "Documents in the reference index after the last build.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	reindexTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Explicit index rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	fallbackNotesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "myvet",
			Subsystem: "triage",
			Name:      "fallback_notes_total",
			Help:      "Degraded submissions by review-flag note.",
		},
		[]string{"service", "note"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		consultsTotal,
		pipelineDuration,
		retrievalMode,
		evidenceRetrieved,
		indexedDocuments,
		reindexTotal,
		fallbackNotesTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		consultsTotal:      consultsTotal,
		pipelineDuration:   pipelineDuration,
		retrievalMode:      retrievalMode,
		evidenceRetrieved:  evidenceRetrieved,
		indexedDocuments:   indexedDocuments,
		reindexTotal:       reindexTotal,
		fallbackNotesTotal: fallbackNotesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
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
	case strings.HasPrefix(path, "/v1/triage/consults/"):
		if strings.HasSuffix(path, "/review") {
			return "/v1/triage/consults/{consult_id}/review"
		}
		if path == "/v1/triage/consults/export" {
			return path
		}
		return "/v1/triage/consults/{consult_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSubmission(service, outcome, mode string, sourceCount int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.consultsTotal.WithLabelValues(service, outcome).Inc()
	m.pipelineDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
	if mode != "" {
		m.retrievalMode.WithLabelValues(service, mode).Inc()
	}
	m.evidenceRetrieved.WithLabelValues(service).Observe(float64(sourceCount))
}

func (m *HTTPServerMetrics) RecordFallbackNote(service, note string) {
	if note == "" {
		note = "unknown"
	}
	m.fallbackNotesTotal.WithLabelValues(service, note).Inc()
}

func (m *HTTPServerMetrics) RecordReindex(documentCount int) {
	m.reindexTotal.Inc()
	m.indexedDocuments.Set(float64(documentCount))
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
