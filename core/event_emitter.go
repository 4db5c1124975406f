package orchestration

import "github.com/koscakluka/ema-vision/core/events"

func noopEventEmitter(events.Event) {}

func chainEventEmitters(emitters ...events.Handler) events.Handler {
	return func(event events.Event) {
		for _, emit := range emitters {
			emit(event)
		}
	}
}

// OrchestrateOptions are callbacks for the events most callers care about.
// Use WithEventHandler to receive everything.
type OrchestrateOptions struct {
	onTranscription func(transcript string)
	onResponse      func(response string)
	onResponseEnd   func()
	onInterruption  func()
	onAudio         func(audio []byte)
}

type OrchestrateOption func(*OrchestrateOptions)

func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscription = callback }
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponse = callback }
}

func WithResponseEndCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponseEnd = callback }
}

func WithInterruptionCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onInterruption = callback }
}

func WithAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onAudio = callback }
}

func newCallbackEventEmitter(opts OrchestrateOptions) events.Handler {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserTranscriptSegment:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Segment)
			}
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd()
			}
		case events.AssistantResponseInterrupted:
			if opts.onInterruption != nil {
				opts.onInterruption()
			}
		case events.AssistantSpeechFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		}
	}
}
