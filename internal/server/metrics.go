package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sahayak/internal/domain"
)

// Metrics holds the service's prometheus instruments on a private
// registry, so embedding the server in tests never collides with the
// global one.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal      *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	documentsIngested prometheus.Counter
	chunksIndexed     prometheus.Counter
	chunkFailures     prometheus.Counter
	retriesTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sahayak",
		Name:      "queries_total",
		Help:      "Answered queries by response language and grounding.",
	}, []string{"language", "grounded"})

	m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sahayak",
		Name:      "query_duration_seconds",
		Help:      "End to end query latency.",
		Buckets:   prometheus.DefBuckets,
	})

	m.documentsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sahayak",
		Name:      "documents_ingested_total",
		Help:      "Documents stored in the index.",
	})

	m.chunksIndexed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sahayak",
		Name:      "chunks_indexed_total",
		Help:      "Chunks embedded and stored.",
	})

	m.chunkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sahayak",
		Name:      "chunk_embedding_failures_total",
		Help:      "Chunks skipped because embedding failed after retries.",
	})

	m.retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sahayak",
		Name:      "service_retries_total",
		Help:      "Retried requests per external service.",
	}, []string{"service"})

	m.registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.documentsIngested,
		m.chunksIndexed,
		m.chunkFailures,
		m.retriesTotal,
	)
	return m
}

func (m *Metrics) ObserveQuery(answer domain.Answer, elapsed time.Duration) {
	grounded := "false"
	if answer.Grounded {
		grounded = "true"
	}
	m.queriesTotal.WithLabelValues(answer.Language.String(), grounded).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveIngest(report domain.IngestReport) {
	if report.ChunksIndexed > 0 {
		m.documentsIngested.Inc()
	}
	m.chunksIndexed.Add(float64(report.ChunksIndexed))
	m.chunkFailures.Add(float64(len(report.Failures)))
}

func (m *Metrics) ObserveRetry(service string) {
	m.retriesTotal.WithLabelValues(service).Inc()
}

// RetryHook adapts ObserveRetry to the retry policy's OnRetry callback.
func (m *Metrics) RetryHook(service string) func(int, error) {
	return func(int, error) { m.ObserveRetry(service) }
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
