package conversations

import (
	"fmt"
	"time"

	"github.com/koscakluka/ema-vision/core/llms"
)

// LatestFinegrainedContext returns the prompt window ending now and spanning
// the configured prompt history length.
func (s *Store) LatestFinegrainedContext() ([]llms.Message, error) {
	end := s.now()
	return s.FinegrainedContext(end.Add(-s.promptHistoryLength), end)
}

// FinegrainedContext renders the log as prompt messages. Only images are
// limited to [start, end]; text and tool items are always part of the
// window so the model keeps the whole spoken conversation.
//
// Consecutive items of the same role are squashed into one message: text
// directly following a text item is appended to its part and anything else
// becomes a new part, so text after a tool call starts a part of its own. Tool call requests are attached to the assistant
// message and every tool response is a message of its own.
func (s *Store) FinegrainedContext(start, end time.Time) ([]llms.Message, error) {
	if end.Sub(start) > s.maxFinegrainedLength {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrInvalidRange, end.Sub(start), s.maxFinegrainedLength)
	}

	var messages []llms.Message
	var previous Kind
	for _, item := range s.Items() {
		if item.Kind == KindImage && (item.Timestamp.Before(start) || item.Timestamp.After(end)) {
			continue
		}
		followsText := previous == KindText
		previous = item.Kind

		var last *llms.Message
		if len(messages) > 0 && messages[len(messages)-1].Role == item.Role {
			last = &messages[len(messages)-1]
		}

		switch item.Kind {
		case KindImage:
			part := llms.ImagePart(item.imageDataURL())
			if last != nil {
				last.Content = append(last.Content, part)
				continue
			}
			messages = append(messages, llms.Message{Role: item.Role, Content: []llms.ContentPart{part}})

		case KindText:
			if last != nil {
				if n := len(last.Content); followsText && n > 0 && last.Content[n-1].Type == llms.PartTypeText {
					last.Content[n-1].Text += item.Text
				} else {
					last.Content = append(last.Content, llms.TextPart(item.Text))
				}
				continue
			}
			messages = append(messages, llms.NewTextMessage(item.Role, item.Text))

		case KindToolCallRequest:
			call := llms.ToolCall{
				ID:        item.ToolCallID,
				Name:      item.ToolName,
				Arguments: string(item.ToolArguments),
			}
			if last != nil {
				last.ToolCalls = append(last.ToolCalls, call)
				continue
			}
			messages = append(messages, llms.Message{Role: item.Role, ToolCalls: []llms.ToolCall{call}})

		case KindToolCallResponse:
			messages = append(messages, llms.Message{
				Role:       item.Role,
				Content:    []llms.ContentPart{llms.TextPart(item.ToolResultFormatted)},
				ToolCallID: item.ToolCallID,
			})

		default:
			return nil, fmt.Errorf("%w: %q (item %d)", ErrUnknownContentKind, item.Kind, item.ID)
		}
	}

	return messages, nil
}
