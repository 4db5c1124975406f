package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

// Prompt sends a single non-streamed completion request.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	resp, err := c.send(ctx, span, llms.NewPromptOptions(opts...), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		err = fmt.Errorf("error unmarshalling response body: %w", err)
		span.RecordError(err)
		return nil, err
	}
	if len(responseBody.Choices) == 0 {
		span.RecordError(ErrEmptyResponse)
		return nil, ErrEmptyResponse
	}
	if responseBody.Usage != nil {
		responseBody.Usage.record(span)
	}

	message := responseBody.Choices[0].Message
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

// send issues the request and returns the response once a 200 status is
// received. The caller closes the body.
func (c *Client) send(ctx context.Context, span trace.Span, options llms.PromptOptions, stream bool) (*http.Response, error) {
	fail := func(err error) (*http.Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reqBody := requestBody{
		Model:    c.modelFor(options.Model),
		Messages: toMessages(options.Instructions, options.Messages),
		Stream:   stream,
	}
	if len(options.Tools) > 0 {
		tools, err := toTools(options.Tools)
		if err != nil {
			return fail(err)
		}
		reqBody.Tools = tools
		reqBody.ToolChoice = utils.Ptr("auto")
		if options.ForcedToolsCall {
			reqBody.ToolChoice = utils.Ptr("required")
		}

		var toolNames []string
		for _, tool := range tools {
			toolNames = append(toolNames, tool.Function.Name)
		}
		span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))
	}
	span.SetAttributes(attribute.String("request.model", reqBody.Model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	span.AddEvent("request started")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("error sending request: %w", err))
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	return resp, nil
}

type requestBody struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Stream     bool      `json:"stream"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []Tool    `json:"tools,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string     `json:"role,omitempty"`
			Content   *string    `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	XGroq *struct {
		Usage *usage `json:"usage"`
	} `json:"x_groq,omitempty"`
}

type usage struct {
	QueueTime        float64 `json:"queue_time"`
	PromptTokens     int     `json:"prompt_tokens"`
	PromptTime       float64 `json:"prompt_time"`
	CompletionTokens int     `json:"completion_tokens"`
	CompletionTime   float64 `json:"completion_time"`
	TotalTokens      int     `json:"total_tokens"`
	TotalTime        float64 `json:"total_time"`
}

func (u usage) record(span trace.Span) {
	span.SetAttributes(
		attribute.Int("usage.prompt", u.PromptTokens),
		attribute.Int("usage.completion", u.CompletionTokens),
		attribute.Int("usage.total", u.TotalTokens),
		attribute.Float64("usage.queue_time", u.QueueTime),
		attribute.Float64("usage.prompt_time", u.PromptTime),
		attribute.Float64("usage.completion_time", u.CompletionTime),
		attribute.Float64("usage.total_time", u.TotalTime),
	)
}
