package openai

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/openai/openai-go/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PromptWithStream prepares a streamed completion. The request is only sent
// once the returned stream is ranged over.
func (c *Client) PromptWithStream(_ context.Context, opts ...llms.PromptOption) llms.Stream {
	options := llms.NewPromptOptions(opts...)
	return &Stream{client: c, options: options}
}

type Stream struct {
	client  *Client
	options llms.PromptOptions
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.Delta, error) bool) {
	return func(yield func(llms.Delta, error) bool) {
		ctx, span := tracer.Start(ctx, "stream completion")
		defer span.End()

		params, err := s.client.newParams(s.options)
		if err != nil {
			span.RecordError(err)
			yield(llms.Delta{}, err)
			return
		}
		span.SetAttributes(attribute.String("llm.model", string(params.Model)))

		stream := s.client.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !yield(toDelta(chunk.Choices[0]), nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			err = fmt.Errorf("completion stream failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(llms.Delta{}, err)
		}
	}
}

func toDelta(choice openai.ChatCompletionChunkChoice) llms.Delta {
	delta := llms.Delta{}
	if choice.Delta.Content != "" {
		content := choice.Delta.Content
		delta.Content = &content
	}
	if choice.FinishReason != "" {
		reason := string(choice.FinishReason)
		delta.FinishReason = &reason
	}
	for _, call := range choice.Delta.ToolCalls {
		delta.ToolCalls = append(delta.ToolCalls, llms.ToolCallDelta{
			Index:     int(call.Index),
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return delta
}
