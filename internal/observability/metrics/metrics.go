// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_gateway"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsCreated  prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsFinished prometheus.Counter
	SessionsExpired  prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Chunk metrics
	ChunksTotal        prometheus.Counter
	ChunkBytesReceived prometheus.Counter
	ChunksRejected     *prometheus.CounterVec

	// Engine metrics
	EngineCallLatency *prometheus.HistogramVec
	EngineErrors      *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of transcription sessions created",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active transcription sessions",
		}),
		SessionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions finished by the client",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Total number of sessions removed by TTL eviction",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of sessions from start to removal in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),

		ChunksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of audio chunks accepted",
		}),
		ChunkBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_received_total",
			Help:      "Total audio bytes received in chunk requests",
		}),
		ChunksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_rejected_total",
			Help:      "Total number of chunk requests rejected",
		}, []string{"reason"}),

		EngineCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_call_latency_seconds",
			Help:      "Latency of streaming engine calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"op"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of streaming engine errors",
		}, []string{"op"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionCreated records a new session being created.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionFinished records a session finished by the client.
func (m *Metrics) RecordSessionFinished(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsFinished.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionExpired records a session removed by TTL eviction.
func (m *Metrics) RecordSessionExpired(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsExpired.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunk records an accepted audio chunk.
func (m *Metrics) RecordChunk(bytes int) {
	m.ChunksTotal.Inc()
	m.ChunkBytesReceived.Add(float64(bytes))
}

// RecordChunkRejected records a rejected chunk request.
func (m *Metrics) RecordChunkRejected(reason string) {
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

// RecordEngineCall records a streaming engine call.
func (m *Metrics) RecordEngineCall(op string, err error, latencySeconds float64) {
	m.EngineCallLatency.WithLabelValues(op).Observe(latencySeconds)
	if err != nil {
		m.EngineErrors.WithLabelValues(op).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
