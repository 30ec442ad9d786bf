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

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatTurnsTotal          *prometheus.CounterVec
	chatStreamDuration      *prometheus.HistogramVec
	chatFragmentsTotal      *prometheus.CounterVec
	chatRejectionsTotal     *prometheus.CounterVec
	ragRetrievalHitTotal    *prometheus.CounterVec
	ragNoContextTotal       *prometheus.CounterVec
	ragRetrievedChunks      *prometheus.HistogramVec
	ragDuration             *prometheus.HistogramVec
	ingestAcceptedTotal     *prometheus.CounterVec
	knowledgeDeletionsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chirp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chirp",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by outcome.",
		},
		[]string{"service", "status"},
	)
	chatStreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chirp",
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Full chat turn duration from request to stream end.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	chatFragmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "chat",
			Name:      "stream_fragments_total",
			Help:      "Total answer fragments streamed to clients.",
		},
		[]string{"service"},
	)
	chatRejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "chat",
			Name:      "rejections_total",
			Help:      "Chat turns rejected before generation, by gate.",
		},
		[]string{"service", "gate"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total chat turns with at least one retrieved context.",
		},
		[]string{"service"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total chat turns answered without retrieved context.",
		},
		[]string{"service"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chirp",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved contexts per chat turn.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chirp",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	ingestAcceptedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "ingest",
			Name:      "sources_accepted_total",
			Help:      "Knowledge sources accepted for processing.",
		},
		[]string{"service", "source_type"},
	)
	knowledgeDeletionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chirp",
			Subsystem: "ingest",
			Name:      "knowledge_deletions_total",
			Help:      "Per-bot knowledge wipe requests.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal, requestDuration, requestInFlight,
		chatTurnsTotal, chatStreamDuration, chatFragmentsTotal, chatRejectionsTotal,
		ragRetrievalHitTotal, ragNoContextTotal, ragRetrievedChunks, ragDuration,
		ingestAcceptedTotal, knowledgeDeletionsTotal,
	)

	return &HTTPServerMetrics{
		registry:                registry,
		requestTotal:            requestTotal,
		requestDuration:         requestDuration,
		requestInFlight:         requestInFlight,
		chatTurnsTotal:          chatTurnsTotal,
		chatStreamDuration:      chatStreamDuration,
		chatFragmentsTotal:      chatFragmentsTotal,
		chatRejectionsTotal:     chatRejectionsTotal,
		ragRetrievalHitTotal:    ragRetrievalHitTotal,
		ragNoContextTotal:       ragNoContextTotal,
		ragRetrievedChunks:      ragRetrievedChunks,
		ragDuration:             ragDuration,
		ingestAcceptedTotal:     ingestAcceptedTotal,
		knowledgeDeletionsTotal: knowledgeDeletionsTotal,
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
	case strings.HasPrefix(path, "/v1/bots/"):
		return "/v1/bots/{bot_id}"
	case strings.HasPrefix(path, "/v1/knowledge/"):
		return "/v1/knowledge/{source_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordChatTurn(service, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, status).Inc()
	m.chatStreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatFragments(service string, count int) {
	if count <= 0 {
		return
	}
	m.chatFragmentsTotal.WithLabelValues(service).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordChatRejection(service, gate string) {
	if gate == "" {
		gate = "unknown"
	}
	m.chatRejectionsTotal.WithLabelValues(service, gate).Inc()
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, contextCount int, duration time.Duration) {
	m.ragRetrievedChunks.WithLabelValues(service).Observe(float64(contextCount))
	m.ragDuration.WithLabelValues(service).Observe(duration.Seconds())

	if contextCount > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordSourceAccepted(service, sourceType string) {
	if sourceType == "" {
		sourceType = "unknown"
	}
	m.ingestAcceptedTotal.WithLabelValues(service, sourceType).Inc()
}

func (m *HTTPServerMetrics) RecordKnowledgeDeletion(service string) {
	m.knowledgeDeletionsTotal.WithLabelValues(service).Inc()
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
