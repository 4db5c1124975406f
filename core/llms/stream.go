package llms

import "context"

// Stream is a streamed completion. Chunks may be ranged over once.
type Stream interface {
	Chunks(context.Context) func(func(Delta, error) bool)
}

// Delta is one streamed increment: free text, tool call fragments or both.
// Content is nil when the increment carries no text.
type Delta struct {
	Content      *string
	ToolCalls    []ToolCallDelta
	FinishReason *string
}

// ToolCallDelta is a fragment of a tool call at a given stream position.
// Empty fields mean the fragment does not carry that field.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type StreamingLLM interface {
	PromptWithStream(ctx context.Context, opts ...PromptOption) Stream
}

type LLM interface {
	Prompt(ctx context.Context, opts ...PromptOption) (*Response, error)
}

// StreamFunc adapts a plain function to a Stream.
type StreamFunc func(context.Context) func(func(Delta, error) bool)

func (f StreamFunc) Chunks(ctx context.Context) func(func(Delta, error) bool) {
	return f(ctx)
}
