package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrToolNotFound = errors.New("tool not found")

// mergeTools drops earlier tools that a later one with the same name
// replaces, keeping the position of the first.
func mergeTools(tools []llms.Tool) []llms.Tool {
	merged := make([]llms.Tool, 0, len(tools))
	positions := map[string]int{}
	for _, tool := range tools {
		if i, ok := positions[tool.Function.Name]; ok {
			merged[i] = tool
			continue
		}
		positions[tool.Function.Name] = len(merged)
		merged = append(merged, tool)
	}
	return merged
}

// startToolCall records the request and runs the tool detached from the
// response, so an interrupted response does not cancel it.
func (o *Orchestrator) startToolCall(ctx context.Context, requestID string, toolCall llms.ToolCall) {
	o.store.AddToolCallRequest(toolCall.Name, toolCall.Arguments, toolCall.ID, o.now())
	o.metrics.RecordToolCallStart()
	o.emit(events.NewToolCallStarted(requestID, toolCall.ID, toolCall.Name, toolCall.Arguments))

	if err := o.toolTasks.Go(context.WithoutCancel(ctx), "tool call "+toolCall.Name, func(ctx context.Context) error {
		return o.callTool(ctx, requestID, toolCall)
	}); err != nil {
		o.recordToolFailure(requestID, toolCall, err)
	}
}

func (o *Orchestrator) callTool(ctx context.Context, requestID string, toolCall llms.ToolCall) error {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", toolCall.Name),
		attribute.String("tool.call_id", toolCall.ID),
	)

	result, err := o.executeTool(ctx, toolCall)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.recordToolFailure(requestID, toolCall, err)
		return nil
	}

	o.store.AddToolCallResponse(toolCall.ID, result.Structured, result.Formatted, o.now())
	o.metrics.RecordToolCallEnd(toolCall.Name, "ok")
	o.emit(events.NewToolCallCompleted(requestID, toolCall.ID, toolCall.Name, result.Formatted))
	return nil
}

func (o *Orchestrator) executeTool(ctx context.Context, toolCall llms.ToolCall) (llms.ToolResult, error) {
	for _, tool := range o.tools {
		if tool.Function.Name == toolCall.Name {
			result, err := tool.Execute(ctx, toolCall.Arguments)
			if err != nil {
				return llms.ToolResult{}, fmt.Errorf("failed to execute tool %q: %w", toolCall.Name, err)
			}
			return result, nil
		}
	}
	return llms.ToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolCall.Name)
}

// recordToolFailure answers the call with the error so the model sees why
// the call produced nothing.
func (o *Orchestrator) recordToolFailure(requestID string, toolCall llms.ToolCall, err error) {
	logger.Warn("tool call failed", "tool", toolCall.Name, "call_id", toolCall.ID, "error", err)
	structured, _ := json.Marshal(map[string]string{"error": err.Error()})
	o.store.AddToolCallResponse(toolCall.ID, structured, "Error: "+err.Error(), o.now())
	o.metrics.RecordToolCallEnd(toolCall.Name, "failed")
	o.emit(events.NewToolCallFailed(requestID, toolCall.ID, toolCall.Name, err.Error()))
}
