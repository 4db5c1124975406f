package llms

import "fmt"

// PairToolResults rewrites a prompt so every tool call is directly followed
// by its result, as chat completion APIs require. The conversation log
// records calls and results as they happen, so a result can arrive long
// after its call or not at all. Calls without a directly following result
// are dropped and results without a directly preceding call become user
// text. An assistant message left with neither text nor calls is dropped.
func PairToolResults(messages []Message) []Message {
	paired := make([]Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		message := messages[i]
		switch message.Role {
		case RoleAssistant:
			results := leadingToolResults(messages[i+1:])
			i += len(results)

			answered := map[string]struct{}{}
			for _, result := range results {
				answered[result.ToolCallID] = struct{}{}
			}

			var calls []ToolCall
			requested := map[string]struct{}{}
			for _, call := range message.ToolCalls {
				if _, ok := answered[call.ID]; ok {
					calls = append(calls, call)
					requested[call.ID] = struct{}{}
				}
			}
			message.ToolCalls = calls
			if len(message.ToolCalls) > 0 || message.Text() != "" {
				paired = append(paired, message)
			}

			var orphans []Message
			for _, result := range results {
				if _, ok := requested[result.ToolCallID]; ok {
					paired = append(paired, result)
				} else {
					orphans = append(orphans, orphanToolResult(result))
				}
			}
			paired = append(paired, orphans...)

		case RoleTool:
			paired = append(paired, orphanToolResult(message))

		default:
			paired = append(paired, message)
		}
	}
	return paired
}

func leadingToolResults(messages []Message) []Message {
	n := 0
	for n < len(messages) && messages[n].Role == RoleTool {
		n++
	}
	return messages[:n]
}

func orphanToolResult(message Message) Message {
	return NewTextMessage(RoleUser, fmt.Sprintf("Result of tool call %s: %s", message.ToolCallID, message.Text()))
}
