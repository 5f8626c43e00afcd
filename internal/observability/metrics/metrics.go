// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_room"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted    prometheus.Counter
	SessionsActive     prometheus.Gauge
	SessionsSuperseded prometheus.Counter
	SessionsFailed     *prometheus.CounterVec
	SessionDuration    prometheus.Histogram

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	AudioFramesDropped  *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial  prometheus.Counter
	TranscriptsFinal    prometheus.Counter
	PartialsSuppressed  prometheus.Counter
	BatchSegments       prometheus.Counter
	BatchDuration       prometheus.Histogram
	TranscriptsLost     prometheus.Counter
	RecognitionFailures *prometheus.CounterVec

	// Message metrics
	MessagesPersisted *prometheus.CounterVec
	PersistErrors     *prometheus.CounterVec
	Broadcasts        prometheus.Counter
	BroadcastSkipped  prometheus.Counter

	// Realtime transport metrics
	ConnectionsActive prometheus.Gauge
	EventsReceived    *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of live transcription sessions started",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently registered transcription sessions",
		}),
		SessionsSuperseded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_superseded_total",
			Help:      "Sessions stopped because the same connection started a new one",
		}),
		SessionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Sessions closed by a backend error",
		}, []string{"stage"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of transcription sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes accepted into sessions",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames accepted into sessions",
		}),
		AudioFramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Audio frames dropped before reaching the backend",
		}, []string{"reason"}),

		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Partial transcripts forwarded to clients",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Final transcripts forwarded to clients",
		}),
		PartialsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_suppressed_total",
			Help:      "Partial transcripts below the forwarding threshold",
		}),
		BatchSegments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_segments_total",
			Help:      "Segments returned by batch transcription",
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Batch transcription job duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		TranscriptsLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_lost_total",
			Help:      "Final transcripts recognised but not persisted",
		}),
		RecognitionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_failures_total",
			Help:      "Speech recognition backend failures",
		}, []string{"mode"}),

		MessagesPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Chat messages persisted",
		}, []string{"type"}),
		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_persist_errors_total",
			Help:      "Chat message persistence failures",
		}, []string{"type"}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Room broadcasts dispatched",
		}),
		BroadcastSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_skipped_total",
			Help:      "Broadcast deliveries skipped for gone or slow connections",
		}),

		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open realtime connections",
		}),
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Realtime events received from clients",
		}, []string{"event"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "gRPC calls handled",
		}, []string{"method", "code"}),
	}
}

// RecordSessionStart records a new session being registered.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session leaving the registry.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionSuperseded records a start that replaced an existing session.
func (m *Metrics) RecordSessionSuperseded() {
	m.SessionsSuperseded.Inc()
}

// RecordSessionFailed records a session closed by a backend error.
func (m *Metrics) RecordSessionFailed(stage string) {
	m.SessionsFailed.WithLabelValues(stage).Inc()
}

// RecordAudioReceived records audio bytes and frames accepted.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordAudioDropped records an audio frame that never reached a backend.
func (m *Metrics) RecordAudioDropped(reason string) {
	m.AudioFramesDropped.WithLabelValues(reason).Inc()
}

// RecordTranscript records a transcript forwarded to a client.
func (m *Metrics) RecordTranscript(isPartial bool) {
	if isPartial {
		m.TranscriptsPartial.Inc()
		return
	}
	m.TranscriptsFinal.Inc()
}

// RecordPartialSuppressed records a partial held back by the forwarding policy.
func (m *Metrics) RecordPartialSuppressed() {
	m.PartialsSuppressed.Inc()
}

// RecordBatch records a completed batch job.
func (m *Metrics) RecordBatch(segments int, durationSeconds float64) {
	m.BatchSegments.Add(float64(segments))
	m.BatchDuration.Observe(durationSeconds)
}

// RecordTranscriptLost records a final transcript that failed to persist.
func (m *Metrics) RecordTranscriptLost() {
	m.TranscriptsLost.Inc()
}

// RecordRecognitionFailure records a backend failure in streaming or batch mode.
func (m *Metrics) RecordRecognitionFailure(mode string) {
	m.RecognitionFailures.WithLabelValues(mode).Inc()
}

// RecordMessagePersisted records a persisted chat message.
func (m *Metrics) RecordMessagePersisted(messageType string) {
	m.MessagesPersisted.WithLabelValues(messageType).Inc()
}

// RecordPersistError records a failed chat message insert.
func (m *Metrics) RecordPersistError(messageType string) {
	m.PersistErrors.WithLabelValues(messageType).Inc()
}

// RecordBroadcast records a room broadcast and the deliveries it skipped.
func (m *Metrics) RecordBroadcast(skipped int) {
	m.Broadcasts.Inc()
	if skipped > 0 {
		m.BroadcastSkipped.Add(float64(skipped))
	}
}

// RecordConnectionOpen records a realtime connection opening.
func (m *Metrics) RecordConnectionOpen() {
	m.ConnectionsActive.Inc()
}

// RecordConnectionClose records a realtime connection closing.
func (m *Metrics) RecordConnectionClose() {
	m.ConnectionsActive.Dec()
}

// RecordEvent records an inbound realtime event.
func (m *Metrics) RecordEvent(event string) {
	m.EventsReceived.WithLabelValues(event).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a handled gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
