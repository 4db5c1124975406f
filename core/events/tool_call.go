package events

const (
	// KindToolCallStarted identifies tool call execution start.
	KindToolCallStarted Kind = "tool_call.started"
	// KindToolCallCompleted identifies successful tool call completion.
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed identifies tool call failure.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallStarted marks start of tool execution.
type ToolCallStarted struct {
	Base
	RequestID string
	CallID    string
	Name      string
	Arguments string
}

func NewToolCallStarted(requestID, callID, name, arguments string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), RequestID: requestID, CallID: callID, Name: name, Arguments: arguments}
}

type ToolCallCompleted struct {
	Base
	RequestID string
	CallID    string
	Name      string
	Response  string
}

func NewToolCallCompleted(requestID, callID, name, response string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), RequestID: requestID, CallID: callID, Name: name, Response: response}
}

// ToolCallFailed marks failed tool execution. The failure is still recorded
// in the conversation as the call's response.
type ToolCallFailed struct {
	Base
	RequestID string
	CallID    string
	Name      string
	Error     string
}

func NewToolCallFailed(requestID, callID, name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), RequestID: requestID, CallID: callID, Name: name, Error: err}
}
