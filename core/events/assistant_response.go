package events

const (
	// KindAssistantRequestIssued identifies a completion request being sent.
	KindAssistantRequestIssued Kind = "assistant_response.request_issued"
	// KindAssistantResponseSegment identifies streamed assistant response text.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseFinal identifies assistant response stream completion.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantResponseInterrupted identifies a response abandoned for new input.
	KindAssistantResponseInterrupted Kind = "assistant_response.interrupted"
	// KindAssistantResponseFailed identifies a failed completion request.
	KindAssistantResponseFailed Kind = "assistant_response.failed"
)

type RequestKind string

const (
	RequestUserQuery  RequestKind = "user_query"
	RequestBackground RequestKind = "background"
)

// AssistantRequestIssued marks a completion request being sent.
type AssistantRequestIssued struct {
	Base
	RequestID   string
	RequestKind RequestKind
}

func NewAssistantRequestIssued(requestID string, kind RequestKind) AssistantRequestIssued {
	return AssistantRequestIssued{Base: NewBase(KindAssistantRequestIssued), RequestID: requestID, RequestKind: kind}
}

// AssistantResponseSegment carries a streamed assistant response text segment.
type AssistantResponseSegment struct {
	Base
	RequestID string
	Segment   string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(requestID, segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), RequestID: requestID, Segment: segment}
}

// AssistantResponseFinal marks assistant response stream completion.
type AssistantResponseFinal struct {
	Base
	RequestID string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(requestID string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), RequestID: requestID}
}

type AssistantResponseInterrupted struct {
	Base
	RequestID string
}

func NewAssistantResponseInterrupted(requestID string) AssistantResponseInterrupted {
	return AssistantResponseInterrupted{Base: NewBase(KindAssistantResponseInterrupted), RequestID: requestID}
}

// AssistantResponseFailed carries the error that dropped the turn.
type AssistantResponseFailed struct {
	Base
	RequestID string
	Err       error
}

func NewAssistantResponseFailed(requestID string, err error) AssistantResponseFailed {
	return AssistantResponseFailed{Base: NewBase(KindAssistantResponseFailed), RequestID: requestID, Err: err}
}
