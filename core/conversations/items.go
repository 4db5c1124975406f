package conversations

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/koscakluka/ema-vision/core/llms"
)

var (
	// ErrInvalidRange is returned when a fine-grained window is longer than
	// the configured maximum.
	ErrInvalidRange = errors.New("time range too long for a fine-grained context")
	// ErrUnknownContentKind means the log holds an item no prompt can be
	// built from.
	ErrUnknownContentKind = errors.New("unknown content kind")
	// ErrUnexpectedToolCallShape is returned by Recall when the model does not
	// answer with exactly one known tool call.
	ErrUnexpectedToolCallShape = errors.New("unexpected tool call shape")
	// ErrNoCompleter is returned by Recall when the store has no LLM.
	ErrNoCompleter = errors.New("no completion service configured")
)

type Kind string

const (
	KindImage            Kind = "image"
	KindText             Kind = "text"
	KindToolCallRequest  Kind = "tool_call_request"
	KindToolCallResponse Kind = "tool_call_response"
)

// Item is an entry of the conversation log. Which payload fields are set
// depends on Kind.
type Item struct {
	ID        int64
	Kind      Kind
	Role      llms.Role
	Timestamp time.Time

	// Image holds the PNG encoded image of image items.
	Image []byte
	Text  string

	ToolName            string
	ToolArguments       json.RawMessage
	ToolCallID          string
	ToolResult          json.RawMessage
	ToolResultFormatted string
}

func (i Item) imageDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(i.Image)
}
