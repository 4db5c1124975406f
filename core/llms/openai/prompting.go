package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/openai/openai-go/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

// Prompt sends a single non-streamed completion request.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt completion")
	defer span.End()

	params, err := c.newParams(llms.NewPromptOptions(opts...))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("llm.model", string(params.Model)))

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("completion request failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(completion.Choices) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return nil, ErrEmptyResponse
	}

	message := completion.Choices[0].Message
	response := &llms.Response{Content: message.Content}
	for _, call := range message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return response, nil
}

func (c *Client) newParams(options llms.PromptOptions) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.modelFor(options.Model),
		Messages: toOpenAIMessages(options.Instructions, options.Messages),
	}

	if len(options.Tools) > 0 {
		tools, err := toOpenAITools(options.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools

		if options.ForcedToolsCall {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
		}
	}

	return params, nil
}
