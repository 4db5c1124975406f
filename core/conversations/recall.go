package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	recallSystemPrompt = "You are a helpful assistant that can recall information from images."
	recallQueryPrompt  = "Please perform the best action you can do answer the following query: %q"
	visualRecallPrompt = "Please help me answer the following question: %q"
)

type visualRecallArgs struct {
	StartTimestamp string `json:"start_timestamp" jsonschema:"description=The timestamp to inspect more closely. Must be of the format 'YYYY-MM-DDTHH:MM:SS'."`
	Query          string `json:"query"`
}

type directResponseArgs struct {
	Response string `json:"response"`
}

type recallArgs struct {
	Query string `json:"query" jsonschema:"description=What to look up in the images seen so far."`
}

func (s *Store) newRecallTools() []llms.Tool {
	return []llms.Tool{
		llms.NewTool("visual_recall",
			"Visually inspects some of the data in the context to help answer the query.",
			func(ctx context.Context, args visualRecallArgs) (llms.ToolResult, error) {
				answer, err := s.visualRecall(ctx, args.Query, args.StartTimestamp)
				if err != nil {
					return llms.ToolResult{}, err
				}
				return llms.TextResult(answer), nil
			}),
		llms.NewTool("direct_response",
			"Directly responds to the query.",
			func(_ context.Context, args directResponseArgs) (llms.ToolResult, error) {
				return llms.TextResult(args.Response), nil
			}),
	}
}

// RecallTool exposes Recall to a conversational model.
func (s *Store) RecallTool() llms.Tool {
	return llms.NewTool("recall",
		"Recalls information from the images seen earlier in the conversation.",
		func(ctx context.Context, args recallArgs) (llms.ToolResult, error) {
			answer, err := s.Recall(ctx, args.Query)
			if err != nil {
				return llms.ToolResult{}, err
			}
			return llms.TextResult(answer), nil
		})
}

// Recall answers a question about earlier images. The model first sees the
// captions of everything captioned so far and either answers directly or
// picks a moment to inspect, in which case the images around that moment
// are shown to it in full.
func (s *Store) Recall(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "recall")
	defer span.End()

	answer, err := s.recall(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return answer, nil
}

func (s *Store) recall(ctx context.Context, query string) (string, error) {
	if s.completer == nil {
		return "", ErrNoCompleter
	}

	coarse, err := s.CoarseContext(ctx)
	if err != nil {
		return "", err
	}

	response, err := s.completer.Prompt(ctx,
		llms.WithSystemPrompt(recallSystemPrompt),
		llms.WithMessages(coarse...),
		llms.WithMessages(llms.NewTextMessage(llms.RoleUser, fmt.Sprintf(recallQueryPrompt, query))),
		llms.WithTools(s.recallTools...),
		llms.WithForcedToolsCall(),
	)
	if err != nil {
		return "", fmt.Errorf("recall request failed: %w", err)
	}

	if len(response.ToolCalls) != 1 {
		return "", fmt.Errorf("%w: got %d tool calls", ErrUnexpectedToolCallShape, len(response.ToolCalls))
	}

	call := response.ToolCalls[0]
	for _, tool := range s.recallTools {
		if tool.Function.Name != call.Name {
			continue
		}

		logger.Info("recall picked tool", "tool", call.Name)
		result, err := tool.Execute(ctx, call.Arguments)
		if err != nil {
			return "", err
		}
		return result.Formatted, nil
	}

	return "", fmt.Errorf("%w: unknown tool %q", ErrUnexpectedToolCallShape, call.Name)
}

func (s *Store) visualRecall(ctx context.Context, query, startTimestamp string) (string, error) {
	ctx, span := tracer.Start(ctx, "visual recall")
	defer span.End()
	span.SetAttributes(attribute.String("recall.start_timestamp", startTimestamp))

	start, err := ParseTimestamp(startTimestamp)
	if err != nil {
		return "", err
	}

	window, err := s.FinegrainedContext(start, start.Add(s.recallWindow))
	if err != nil {
		return "", err
	}

	response, err := s.completer.Prompt(ctx,
		llms.WithSystemPrompt(recallSystemPrompt),
		llms.WithMessages(window...),
		llms.WithMessages(llms.NewTextMessage(llms.RoleUser, fmt.Sprintf(visualRecallPrompt, query))),
	)
	if err != nil {
		return "", fmt.Errorf("visual recall request failed: %w", err)
	}
	return response.Content, nil
}

// ParseTimestamp reads a timestamp in TimestampLayout as local time. Full
// RFC 3339 timestamps are accepted as well.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, value, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}
