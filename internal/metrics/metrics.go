// Package metrics holds the Prometheus collectors of the assistant core.
//
// All Record methods are safe to call on a nil *Metrics, so components can
// take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant core.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Context store metrics
	ContentItemsTotal *prometheus.CounterVec
	CaptionsTotal     *prometheus.CounterVec

	// Audio ingest metrics
	AudioFlushesTotal  *prometheus.CounterVec
	AudioFlushDuration prometheus.Histogram
	TranscriptDeltas   prometheus.Counter

	// Model request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tool call metrics
	ToolCallsTotal  *prometheus.CounterVec
	ToolCallsActive prometheus.Gauge

	// Speech metrics
	SpeechRequestsTotal  prometheus.Counter
	SpeechDiscardedTotal prometheus.Counter
	PlaybackBytesTotal   prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ema_vision"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active ingest sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of ingest sessions",
		}),
		ContentItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_items_total",
			Help:      "Total number of items appended to the context log",
		}, []string{"kind"}),
		CaptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captions_total",
			Help:      "Total number of captioning jobs by outcome",
		}, []string{"status"}),
		AudioFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_flushes_total",
			Help:      "Total number of audio buffers forwarded to transcription",
		}, []string{"reason"}),
		AudioFlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_flush_duration_seconds",
			Help:      "Duration of audio contained in forwarded buffers",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15},
		}),
		TranscriptDeltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_deltas_total",
			Help:      "Total number of non-empty transcript deltas received",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of model requests by kind and outcome",
		}, []string{"kind", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Model request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of executed tool calls by outcome",
		}, []string{"tool", "status"}),
		ToolCallsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tool_calls_active",
			Help:      "Number of tool calls currently executing",
		}),
		SpeechRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Total number of synthesis requests sent",
		}),
		SpeechDiscardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_discarded_total",
			Help:      "Total number of text fragments dropped because of an interruption",
		}),
		PlaybackBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_bytes_total",
			Help:      "Total number of audio bytes written to the output sink",
		}),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.ContentItemsTotal,
		m.CaptionsTotal,
		m.AudioFlushesTotal,
		m.AudioFlushDuration,
		m.TranscriptDeltas,
		m.RequestsTotal,
		m.RequestDuration,
		m.ToolCallsTotal,
		m.ToolCallsActive,
		m.SpeechRequestsTotal,
		m.SpeechDiscardedTotal,
		m.PlaybackBytesTotal,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

func (m *Metrics) RecordSessionEnd() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) RecordContentItem(kind string) {
	if m == nil {
		return
	}
	m.ContentItemsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCaption(status string) {
	if m == nil {
		return
	}
	m.CaptionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordAudioFlush(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AudioFlushesTotal.WithLabelValues(reason).Inc()
	m.AudioFlushDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordTranscriptDelta() {
	if m == nil {
		return
	}
	m.TranscriptDeltas.Inc()
}

// RecordRequest records a finished model request.
func (m *Metrics) RecordRequest(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordToolCallStart() {
	if m == nil {
		return
	}
	m.ToolCallsActive.Inc()
}

func (m *Metrics) RecordToolCallEnd(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsActive.Dec()
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) RecordSpeechRequest() {
	if m == nil {
		return
	}
	m.SpeechRequestsTotal.Inc()
}

func (m *Metrics) RecordSpeechDiscarded(fragments int) {
	if m == nil || fragments <= 0 {
		return
	}
	m.SpeechDiscardedTotal.Add(float64(fragments))
}

func (m *Metrics) RecordPlayback(bytes int) {
	if m == nil {
		return
	}
	m.PlaybackBytesTotal.Add(float64(bytes))
}
