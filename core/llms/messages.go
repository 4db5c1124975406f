package llms

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image_url"
)

// ContentPart is one piece of a multimodal message. ImageURL is usually a
// data URL.
type ContentPart struct {
	Type     PartType
	Text     string
	ImageURL string
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartTypeImage, ImageURL: url}
}

// Message is a role-tagged block of a prompt.
type Message struct {
	Role    Role
	Content []ContentPart

	// ToolCalls are the calls requested by the assistant in this message.
	ToolCalls []ToolCall
	// ToolCallID is set on tool messages and names the call being answered.
	ToolCallID string
}

// Text joins all text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, part := range m.Content {
		if part.Type == PartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (m Message) HasImages() bool {
	for _, part := range m.Content {
		if part.Type == PartTypeImage {
			return true
		}
	}
	return false
}

func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart(text)}}
}

// Response is a single non-streamed response from an LLM
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}
