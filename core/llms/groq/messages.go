package groq

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-vision/core/llms"
)

type message struct {
	Role messageRole `json:"role"`
	// Content is a string, or a list of content parts for messages with
	// images.
	Content    any        `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// Tool is the wire form of llms.Tool.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Strict      bool   `json:"strict,omitempty"`
}

func toMessages(instructions string, messages []llms.Message) []message {
	converted := []message{}
	if instructions != "" {
		converted = append(converted, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range llms.PairToolResults(messages) {
		switch msg.Role {
		case llms.RoleSystem:
			converted = append(converted, message{Role: messageRoleSystem, Content: msg.Text()})

		case llms.RoleUser:
			converted = append(converted, message{Role: messageRoleUser, Content: userContent(msg)})

		case llms.RoleAssistant:
			wire := message{Role: messageRoleAssistant, Content: msg.Text()}
			for i, call := range msg.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, toolCall{
					Index: i,
					ID:    call.ID,
					Type:  "function",
					Function: toolCallFunction{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			converted = append(converted, wire)

		case llms.RoleTool:
			converted = append(converted, message{
				Role:       messageRoleTool,
				Content:    msg.Text(),
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return converted
}

func userContent(msg llms.Message) any {
	if !msg.HasImages() {
		return msg.Text()
	}

	parts := make([]contentPart, 0, len(msg.Content))
	for _, part := range msg.Content {
		switch part.Type {
		case llms.PartTypeText:
			parts = append(parts, contentPart{Type: "text", Text: part.Text})
		case llms.PartTypeImage:
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: part.ImageURL}})
		}
	}
	return parts
}

func toTools(tools []llms.Tool) ([]Tool, error) {
	var converted []Tool
	if err := copier.Copy(&converted, tools); err != nil {
		return nil, fmt.Errorf("failed to convert tools: %w", err)
	}
	for i, tool := range tools {
		parameters, err := llms.SchemaMap(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Function.Name, err)
		}
		converted[i].Function.Parameters = nil
		if parameters != nil {
			converted[i].Function.Parameters = parameters
		}
	}
	return converted, nil
}
