package openai

import (
	"fmt"

	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
)

// toOpenAIMessages converts prompt messages to chat completion messages.
func toOpenAIMessages(instructions string, messages []llms.Message) []openai.ChatCompletionMessageParamUnion {
	converted := []openai.ChatCompletionMessageParamUnion{}
	if instructions != "" {
		converted = append(converted, openai.SystemMessage(instructions))
	}

	for _, message := range llms.PairToolResults(messages) {
		switch message.Role {
		case llms.RoleSystem:
			converted = append(converted, openai.SystemMessage(message.Text()))
		case llms.RoleUser:
			converted = append(converted, userMessage(message))
		case llms.RoleAssistant:
			converted = append(converted, assistantMessage(message.Text(), message.ToolCalls))
		case llms.RoleTool:
			converted = append(converted, openai.ToolMessage(message.Text(), message.ToolCallID))
		}
	}

	return converted
}

func userMessage(message llms.Message) openai.ChatCompletionMessageParamUnion {
	if !message.HasImages() {
		return openai.UserMessage(message.Text())
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(message.Content))
	for _, part := range message.Content {
		switch part.Type {
		case llms.PartTypeText:
			parts = append(parts, openai.TextContentPart(part.Text))
		case llms.PartTypeImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: part.ImageURL,
			}))
		}
	}
	return openai.UserMessage(parts)
}

func assistantMessage(text string, calls []llms.ToolCall) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if text != "" {
		assistant.Content.OfString = param.NewOpt(text)
	}
	for _, call := range calls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func toOpenAITools(tools []llms.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	converted := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		parameters, err := llms.SchemaMap(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Function.Name, err)
		}

		function := openai.FunctionDefinitionParam{
			Name:       tool.Function.Name,
			Parameters: openai.FunctionParameters(parameters),
		}
		if tool.Function.Description != "" {
			function.Description = openai.String(tool.Function.Description)
		}
		if tool.Function.Strict {
			function.Strict = openai.Bool(true)
		}
		converted = append(converted, openai.ChatCompletionFunctionTool(function))
	}
	return converted, nil
}
