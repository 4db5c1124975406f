package orchestration

import (
	"io"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/internal/metrics"
)

const (
	DefaultSilencePeriod            = 5 * time.Second
	DefaultThinkingPeriod           = 5 * time.Second
	DefaultSpeechBootstrapThreshold = 6
	DefaultMaxConcurrentToolCalls   = 8

	// NoImagesInstruction is added to user queries until the first image
	// has been seen.
	NoImagesInstruction = "You have not received any images yet. Answer from the conversation alone and do not describe what you see."
	// BackgroundPrompt is appended to background requests.
	BackgroundPrompt = "Please now check if any of your background tasks could be applied here."
)

type OrchestratorOption func(*Orchestrator)

func WithStreamingLLM(client llms.StreamingLLM) OrchestratorOption {
	return func(o *Orchestrator) {
		o.llm = client
	}
}

func WithSpeechToText(client speechtotext.Transcriber) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechToText = client
	}
}

func WithTextToSpeech(client texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.textToSpeech = client
	}
}

// WithAudioOutput sets where synthesized pcm16 audio is written.
func WithAudioOutput(output io.Writer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.audioOutput = output
	}
}

// WithOutputEncoding sets the encoding requested from the synthesizer. It
// must match what the audio output expects.
func WithOutputEncoding(encoding audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		if !encoding.IsZero() {
			o.outputEncoding = encoding
		}
	}
}

// WithTools registers tools next to the default recall tool. A tool with
// the same name as an earlier one replaces it.
func WithTools(tools ...llms.Tool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.extraTools = append(o.extraTools, tools...)
	}
}

// WithSilencePeriod sets how long the user has to be quiet before a request
// is considered.
func WithSilencePeriod(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.silencePeriod = d
		}
	}
}

// WithThinkingPeriod sets the minimum gap between background requests.
func WithThinkingPeriod(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.thinkingPeriod = d
		}
	}
}

// WithSpeechBootstrapThreshold sets how many fragments a response has to
// produce before its first synthesis request.
func WithSpeechBootstrapThreshold(fragments int) OrchestratorOption {
	return func(o *Orchestrator) {
		if fragments > 0 {
			o.bootstrapThreshold = fragments
		}
	}
}

func WithMaxConcurrentToolCalls(limit int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxConcurrentToolCalls = limit
	}
}

func WithEventHandler(handler events.Handler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.emit = handler
		}
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithInstructions sets the system prompt sent with every request.
func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.instructions = instructions
	}
}

func WithIngestOptions(opts ...audio.IngestOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.ingestOptions = append(o.ingestOptions, opts...)
	}
}

// WithClock replaces time.Now for the request decision and stored
// timestamps.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}
