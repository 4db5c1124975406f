// Package texttospeech defines the contract shared by the streaming speech
// synthesis clients.
package texttospeech

import (
	"context"

	"github.com/koscakluka/ema-vision/core/audio"
)

const DefaultSampleRate = 24000

// DefaultEncodingInfo is 24 kHz mono linear16.
func DefaultEncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: DefaultSampleRate, Format: audio.EncodingLinear16, Channels: 1}
}

// Synthesizer is a long lived synthesis stream. Requests sharing a
// ContextID are spoken as one continuous utterance.
type Synthesizer interface {
	Open(ctx context.Context, opts ...TextToSpeechOption) error
	Synthesize(ctx context.Context, request Request) error
	Close() error
}

type Request struct {
	Text string
	// ContextID groups requests that continue each other.
	ContextID string
	// Continue tells the service more text for the context may follow.
	Continue bool
}

type EventType string

const (
	EventChunk     EventType = "chunk"
	EventDone      EventType = "done"
	EventFlushDone EventType = "flush_done"
	EventError     EventType = "error"
)

// Event is something the synthesis service sent back. Audio is set on chunk
// events, Err on error events.
type Event struct {
	Type      EventType
	ContextID string
	Audio     []byte
	Err       error
}

type TextToSpeechOptions struct {
	// EventCallback receives every event in the order the service sent it.
	EventCallback func(Event)
	EncodingInfo  audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func NewTextToSpeechOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		EventCallback: func(Event) {},
		EncodingInfo:  DefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithEventCallback(callback func(Event)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.EventCallback = callback
		}
	}
}

// WithSpeechAudioCallback is a shorthand for an event callback that only
// cares about audio.
func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return WithEventCallback(func(event Event) {
		if event.Type == EventChunk {
			callback(event.Audio)
		}
	})
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// Canceller is implemented by synthesizers that can stop generating a
// context that is no longer wanted.
type Canceller interface {
	Cancel(contextID string) error
}
