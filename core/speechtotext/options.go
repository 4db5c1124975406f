// Package speechtotext defines the contract shared by the streaming
// transcription clients.
package speechtotext

import (
	"context"

	"github.com/koscakluka/ema-vision/core/audio"
)

// Transcriber is a realtime transcription session. Transcribe opens the
// session and returns once it is ready for audio; results are delivered
// through the callbacks given as options.
type Transcriber interface {
	Transcribe(ctx context.Context, opts ...TranscriptionOption) error
	SendAudio(audio []byte) error
	Close(ctx context.Context) error
}

type TranscriptionOptions struct {
	// PartialTranscriptionCallback receives every new piece of transcribed
	// text as soon as the service commits to it.
	PartialTranscriptionCallback func(transcript string)
	// TranscriptionCallback receives the full transcript of an utterance once
	// the speaker stops.
	TranscriptionCallback func(transcript string)
	// InterimTranscriptionCallback receives unstable guesses that may still
	// change.
	InterimTranscriptionCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func NewTranscriptionOptions(defaultEncoding audio.EncodingInfo, opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{EncodingInfo: defaultEncoding}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
