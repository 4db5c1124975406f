package groq

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// PromptWithStream prepares a streamed completion. The request is sent when
// the stream is ranged over.
func (c *Client) PromptWithStream(_ context.Context, opts ...llms.PromptOption) llms.Stream {
	return &Stream{client: c, options: llms.NewPromptOptions(opts...)}
}

type Stream struct {
	client  *Client
	options llms.PromptOptions
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.Delta, error) bool) {
	return func(yield func(llms.Delta, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()

		requestStarted := time.Now()
		resp, err := s.client.send(ctx, span, s.options, true)
		if err != nil {
			yield(llms.Delta{}, err)
			return
		}
		defer resp.Body.Close()

		firstChunk := true
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			if chunk == endMessage {
				break
			}

			if firstChunk {
				firstChunk = false
				span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestStarted).Seconds()))
				span.AddEvent("received first chunk")
			}

			var responseBody streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				logger.Warn("skipping malformed chunk", "error", err)
				continue
			}
			if responseBody.XGroq != nil && responseBody.XGroq.Usage != nil {
				responseBody.XGroq.Usage.record(span)
			}
			if len(responseBody.Choices) == 0 {
				continue
			}

			choice := responseBody.Choices[0]
			delta := llms.Delta{FinishReason: choice.FinishReason}
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				delta.Content = choice.Delta.Content
			}
			for _, call := range choice.Delta.ToolCalls {
				delta.ToolCalls = append(delta.ToolCalls, llms.ToolCallDelta{
					Index:     call.Index,
					ID:        call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}

			if !yield(delta, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			err = fmt.Errorf("error reading streamed response: %w", err)
			span.RecordError(err)
			yield(llms.Delta{}, err)
		}
	}
}
