// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatbox_translator"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Capture metrics
	FramesCaptured  prometheus.Counter
	FramesDropped   prometheus.Counter
	CaptureRestarts prometheus.Counter

	// Segmenter metrics
	SegmentsCreated prometheus.Counter
	SegmentsDropped *prometheus.CounterVec
	SegmentDuration prometheus.Histogram

	// Dispatch metrics
	SegmentsDispatched   prometheus.Counter
	TranscriptionLatency *prometheus.HistogramVec
	TranscriptionErrors  *prometheus.CounterVec
	RateLimitWait        prometheus.Histogram

	// Chatbox metrics
	ChunksSent        prometheus.Counter
	ChatboxSendErrors prometheus.Counter
	MessagesPreempted prometheus.Counter
	MessagesTruncated prometheus.Counter
	TypingActive      prometheus.Gauge

	// Inbound OSC metrics
	MuteState prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Cost metrics
	EstimatedCostUSD prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Total number of audio frames read from the input device",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of audio frames dropped because the capture queue was full",
		}),
		CaptureRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Total number of recovered audio stream read errors",
		}),

		// Segmenter metrics
		SegmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total number of utterance segments emitted by the segmenter",
		}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of segments dropped",
		}, []string{"reason"}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_duration_seconds",
			Help:      "Duration of emitted utterance segments in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),

		// Dispatch metrics
		SegmentsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dispatched_total",
			Help:      "Total number of segments successfully transcribed and handed to the emitter",
		}),
		TranscriptionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Remote transcription/translation latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		TranscriptionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_errors_total",
			Help:      "Total number of remote transcription/translation errors",
		}, []string{"provider", "error_type"}),
		RateLimitWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for a rate limiter token before dispatch",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),

		// Chatbox metrics
		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Total number of chatbox message chunks sent over OSC",
		}),
		ChatboxSendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chatbox_send_errors_total",
			Help:      "Total number of failed OSC chatbox sends",
		}),
		MessagesPreempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_preempted_total",
			Help:      "Total number of chatbox messages preempted by a newer transcript",
		}),
		MessagesTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_truncated_total",
			Help:      "Total number of chatbox messages truncated at the chunk budget",
		}),
		TypingActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_active",
			Help:      "Whether the chatbox typing indicator is currently on",
		}),

		// Inbound OSC metrics
		MuteState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mute_state",
			Help:      "Last MuteSelf state received from VRChat (1 = muted)",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Cost metrics
		EstimatedCostUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_usd_total",
			Help:      "Estimated API spend in USD since process start",
		}),
	}
}

// RecordFrameCaptured records an audio frame read from the device.
func (m *Metrics) RecordFrameCaptured() {
	m.FramesCaptured.Inc()
}

// RecordFrameDropped records a frame dropped on a full capture queue.
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordCaptureRestart records a recovered stream read error.
func (m *Metrics) RecordCaptureRestart() {
	m.CaptureRestarts.Inc()
}

// RecordSegmentCreated records an emitted utterance segment.
func (m *Metrics) RecordSegmentCreated(durationSeconds float64) {
	m.SegmentsCreated.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordSegmentDropped records a segment being dropped.
func (m *Metrics) RecordSegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecordDispatch records a successful transcription dispatch.
func (m *Metrics) RecordDispatch(provider string, latencySeconds float64) {
	m.SegmentsDispatched.Inc()
	m.TranscriptionLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordTranscriptionError records a remote transcription failure.
func (m *Metrics) RecordTranscriptionError(provider, errorType string) {
	m.TranscriptionErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordRateLimitWait records time spent waiting for a dispatch token.
func (m *Metrics) RecordRateLimitWait(seconds float64) {
	m.RateLimitWait.Observe(seconds)
}

// RecordChunkSent records a chatbox chunk delivered over OSC.
func (m *Metrics) RecordChunkSent() {
	m.ChunksSent.Inc()
}

// RecordChatboxSendError records a failed OSC send.
func (m *Metrics) RecordChatboxSendError() {
	m.ChatboxSendErrors.Inc()
}

// RecordPreemption records a message preempted by a newer one.
func (m *Metrics) RecordPreemption() {
	m.MessagesPreempted.Inc()
}

// RecordTruncation records a message truncated at the chunk budget.
func (m *Metrics) RecordTruncation() {
	m.MessagesTruncated.Inc()
}

// SetTyping records the current typing indicator state.
func (m *Metrics) SetTyping(on bool) {
	if on {
		m.TypingActive.Set(1)
	} else {
		m.TypingActive.Set(0)
	}
}

// SetMuted records the mute state reported by VRChat.
func (m *Metrics) SetMuted(muted bool) {
	if muted {
		m.MuteState.Set(1)
	} else {
		m.MuteState.Set(0)
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}

// RecordCost records estimated API spend for one call.
func (m *Metrics) RecordCost(usd float64) {
	m.EstimatedCostUSD.Add(usd)
}
