package audio

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-vision/internal/metrics"
)

const (
	DefaultMinFlushDuration  = 2 * time.Second
	DefaultMaxFlushDuration  = 10 * time.Second
	DefaultLoudnessThreshold = 0.02
)

// IngestBuffer collects raw client audio and forwards it in batches. A batch
// is released once it reaches the maximum duration, or once it reaches the
// minimum duration while the speaker is loud. Forwarded audio is mono
// linear16 at the output sample rate.
type IngestBuffer struct {
	mu  sync.Mutex
	buf []byte

	forward           func([]byte)
	input             EncodingInfo
	outputSampleRate  int
	minFlushDuration  time.Duration
	maxFlushDuration  time.Duration
	loudnessThreshold float64
	metrics           *metrics.Metrics
}

type IngestOption func(*IngestBuffer)

func WithInputEncoding(encoding EncodingInfo) IngestOption {
	return func(b *IngestBuffer) {
		b.input = encoding
	}
}

func WithOutputSampleRate(sampleRate int) IngestOption {
	return func(b *IngestBuffer) {
		b.outputSampleRate = sampleRate
	}
}

func WithMinFlushDuration(d time.Duration) IngestOption {
	return func(b *IngestBuffer) {
		b.minFlushDuration = d
	}
}

func WithMaxFlushDuration(d time.Duration) IngestOption {
	return func(b *IngestBuffer) {
		b.maxFlushDuration = d
	}
}

// WithLoudnessThreshold sets the level, on the [0, 1] scale reported by
// clients, above which a batch longer than the minimum is released.
func WithLoudnessThreshold(threshold float64) IngestOption {
	return func(b *IngestBuffer) {
		b.loudnessThreshold = threshold
	}
}

func WithIngestMetrics(m *metrics.Metrics) IngestOption {
	return func(b *IngestBuffer) {
		b.metrics = m
	}
}

func NewIngestBuffer(forward func([]byte), opts ...IngestOption) *IngestBuffer {
	b := &IngestBuffer{
		forward:           forward,
		input:             DefaultInputEncoding(),
		outputSampleRate:  DefaultOutputSampleRate,
		minFlushDuration:  DefaultMinFlushDuration,
		maxFlushDuration:  DefaultMaxFlushDuration,
		loudnessThreshold: DefaultLoudnessThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnAudioPacket appends a packet and reports whether it caused a flush.
func (b *IngestBuffer) OnAudioPacket(pcm []byte, loudness float64) bool {
	b.mu.Lock()
	b.buf = append(b.buf, pcm...)
	duration := b.input.Duration(len(b.buf))

	var reason string
	switch {
	case duration >= b.maxFlushDuration:
		reason = "max_duration"
	case duration >= b.minFlushDuration && loudness > b.loudnessThreshold:
		reason = "loudness"
	default:
		b.mu.Unlock()
		return false
	}

	batch := b.take()
	b.mu.Unlock()

	b.release(batch, duration, reason)
	return true
}

// Flush forwards whatever is buffered, if anything.
func (b *IngestBuffer) Flush() {
	b.mu.Lock()
	duration := b.input.Duration(len(b.buf))
	batch := b.take()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.release(batch, duration, "forced")
	}
}

// Buffered is the playing time currently held back.
func (b *IngestBuffer) Buffered() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.input.Duration(len(b.buf))
}

func (b *IngestBuffer) take() []byte {
	batch := b.buf
	b.buf = nil
	return batch
}

func (b *IngestBuffer) release(batch []byte, duration time.Duration, reason string) {
	samples := Resample(Samples(batch, b.input.channels()), b.input.SampleRate, b.outputSampleRate)
	b.metrics.RecordAudioFlush(reason, duration)
	b.forward(PCM(samples))
}

// OutputEncoding describes the batches handed to forward.
func (b *IngestBuffer) OutputEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: b.outputSampleRate, Format: EncodingLinear16, Channels: 1}
}
