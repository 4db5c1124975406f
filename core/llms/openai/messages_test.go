package openai

import (
	"context"
	"testing"

	"github.com/koscakluka/ema-vision/core/llms"
)

func TestToOpenAIMessagesKeepsAnsweredToolCalls(t *testing.T) {
	messages := []llms.Message{
		llms.NewTextMessage(llms.RoleUser, "what did I see?"),
		{
			Role:      llms.RoleAssistant,
			Content:   []llms.ContentPart{llms.TextPart("Let me check.")},
			ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "recall", Arguments: `{"query":"desk"}`}},
		},
		{Role: llms.RoleTool, Content: []llms.ContentPart{llms.TextPart("a desk")}, ToolCallID: "call_1"},
	}

	converted := toOpenAIMessages("be brief", messages)
	if len(converted) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(converted))
	}
	if converted[0].OfSystem == nil {
		t.Fatalf("expected system message first, got %+v", converted[0])
	}
	if converted[1].OfUser == nil || converted[1].OfUser.Content.OfString.Value != "what did I see?" {
		t.Fatalf("unexpected user message %+v", converted[1])
	}

	assistant := converted[2].OfAssistant
	if assistant == nil || assistant.Content.OfString.Value != "Let me check." {
		t.Fatalf("unexpected assistant message %+v", converted[2])
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].OfFunction.ID != "call_1" {
		t.Fatalf("tool call missing: %+v", assistant.ToolCalls)
	}

	tool := converted[3].OfTool
	if tool == nil || tool.ToolCallID != "call_1" || tool.Content.OfString.Value != "a desk" {
		t.Fatalf("unexpected tool message %+v", converted[3])
	}
}

func TestToOpenAIMessagesRendersLateResultsAsText(t *testing.T) {
	messages := []llms.Message{
		{
			Role:      llms.RoleAssistant,
			ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "recall", Arguments: `{}`}},
		},
		llms.NewTextMessage(llms.RoleUser, "hello?"),
		{Role: llms.RoleTool, Content: []llms.ContentPart{llms.TextPart("late")}, ToolCallID: "call_1"},
	}

	converted := toOpenAIMessages("", messages)
	if len(converted) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(converted))
	}
	if converted[0].OfUser == nil || converted[1].OfUser == nil {
		t.Fatalf("expected two user messages, got %+v", converted)
	}
}

func TestToOpenAIMessagesImages(t *testing.T) {
	messages := []llms.Message{{
		Role: llms.RoleUser,
		Content: []llms.ContentPart{
			llms.TextPart("look"),
			llms.ImagePart("data:image/png;base64,AAAA"),
		},
	}}

	converted := toOpenAIMessages("", messages)
	parts := converted[0].OfUser.Content.OfArrayOfContentParts
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].OfText == nil || parts[0].OfText.Text != "look" {
		t.Fatalf("unexpected text part %+v", parts[0])
	}
	if parts[1].OfImageURL == nil || parts[1].OfImageURL.ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image part %+v", parts[1])
	}
}

func TestToOpenAITools(t *testing.T) {
	type args struct {
		Query string `json:"query"`
	}
	tool := llms.NewTool("recall", "Recalls things.", func(context.Context, args) (llms.ToolResult, error) {
		return llms.ToolResult{}, nil
	})

	tools, err := toOpenAITools([]llms.Tool{tool})
	if err != nil {
		t.Fatalf("toOpenAITools failed: %v", err)
	}
	function := tools[0].OfFunction.Function
	if function.Name != "recall" || function.Description.Value != "Recalls things." || !function.Strict.Value {
		t.Fatalf("unexpected function %+v", function)
	}
	if function.Parameters["type"] != "object" {
		t.Fatalf("expected object schema, got %v", function.Parameters)
	}
	if function.Parameters["additionalProperties"] != false {
		t.Fatalf("strict tools must close their schema, got %v", function.Parameters)
	}
}
