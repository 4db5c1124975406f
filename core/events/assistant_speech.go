package events

const (
	// KindAssistantSpeechRequested identifies text sent for synthesis.
	KindAssistantSpeechRequested Kind = "assistant_speech.requested"
	// KindAssistantSpeechDiscarded identifies stale text dropped before synthesis.
	KindAssistantSpeechDiscarded Kind = "assistant_speech.discarded"
	// KindAssistantSpeechFrame identifies synthesized assistant speech audio.
	KindAssistantSpeechFrame Kind = "assistant_speech.frame"
)

// AssistantSpeechRequested carries the batched text of one synthesis request.
type AssistantSpeechRequested struct {
	Base
	RequestID string
	Text      string
	Final     bool
}

func NewAssistantSpeechRequested(requestID, text string, final bool) AssistantSpeechRequested {
	return AssistantSpeechRequested{Base: NewBase(KindAssistantSpeechRequested), RequestID: requestID, Text: text, Final: final}
}

// AssistantSpeechDiscarded counts fragments dropped because their response
// was interrupted.
type AssistantSpeechDiscarded struct {
	Base
	RequestID string
	Fragments int
}

func NewAssistantSpeechDiscarded(requestID string, fragments int) AssistantSpeechDiscarded {
	return AssistantSpeechDiscarded{Base: NewBase(KindAssistantSpeechDiscarded), RequestID: requestID, Fragments: fragments}
}

// AssistantSpeechFrame carries a synthesized assistant speech audio frame.
type AssistantSpeechFrame struct {
	Base
	RequestID string
	Audio     []byte
}

// NewAssistantSpeechFrame creates an assistant speech audio frame event.
func NewAssistantSpeechFrame(requestID string, audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), RequestID: requestID, Audio: audio}
}
