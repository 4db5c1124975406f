package conversations

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/llms"
)

func TestFinegrainedContextRejectsLongRanges(t *testing.T) {
	store := NewStore(WithMaxFinegrainedLength(10 * time.Second))
	start := time.Now()

	if _, err := store.FinegrainedContext(start, start.Add(11*time.Second)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := store.FinegrainedContext(start, start.Add(10*time.Second)); err != nil {
		t.Fatalf("range equal to the maximum should pass, got %v", err)
	}
}

func TestFinegrainedContextSquashesSameRole(t *testing.T) {
	store := NewStore()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	store.AddText("Hello", llms.RoleUser, start)
	store.AddText(" there", llms.RoleUser, start.Add(time.Second))
	store.AddImage(testImage(), start.Add(2*time.Second))
	store.AddText("what is this?", llms.RoleUser, start.Add(3*time.Second))
	store.AddText("Let me ", llms.RoleAssistant, start.Add(4*time.Second))
	store.AddText("check.", llms.RoleAssistant, start.Add(5*time.Second))
	store.AddToolCallRequest("recall", `{"query":"desk"}`, "call_1", start.Add(6*time.Second))
	store.AddToolCallResponse("call_1", json.RawMessage(`{"result":"a desk"}`), "a desk", start.Add(7*time.Second))

	messages, err := store.FinegrainedContext(start, start.Add(10*time.Second))
	if err != nil {
		t.Fatalf("FinegrainedContext failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(messages), messages)
	}

	user := messages[0]
	if user.Role != llms.RoleUser || len(user.Content) != 3 {
		t.Fatalf("unexpected user message %+v", user)
	}
	if user.Content[0].Text != "Hello there" {
		t.Fatalf("consecutive text not concatenated: %q", user.Content[0].Text)
	}
	if user.Content[1].Type != llms.PartTypeImage {
		t.Fatalf("expected image part, got %+v", user.Content[1])
	}
	if user.Content[2].Text != "what is this?" {
		t.Fatalf("text after image should be its own part, got %+v", user.Content[2])
	}

	assistant := messages[1]
	if assistant.Role != llms.RoleAssistant || assistant.Text() != "Let me check." {
		t.Fatalf("unexpected assistant message %+v", assistant)
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_1" || assistant.ToolCalls[0].Arguments != `{"query":"desk"}` {
		t.Fatalf("tool call not attached to assistant message: %+v", assistant.ToolCalls)
	}

	tool := messages[2]
	if tool.Role != llms.RoleTool || tool.ToolCallID != "call_1" || tool.Text() != "a desk" {
		t.Fatalf("unexpected tool message %+v", tool)
	}
}

func TestFinegrainedContextTextAfterToolCallIsNewPart(t *testing.T) {
	store := NewStore()
	now := time.Now()

	store.AddText("Checking.", llms.RoleAssistant, now)
	store.AddToolCallRequest("recall", `{"query":"desk"}`, "call_1", now)
	store.AddText("Still looking.", llms.RoleAssistant, now)
	store.AddText(" Almost.", llms.RoleAssistant, now)

	messages, err := store.FinegrainedContext(now.Add(-time.Second), now)
	if err != nil {
		t.Fatalf("FinegrainedContext failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected one assistant message, got %+v", messages)
	}

	assistant := messages[0]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected the tool call on the assistant message, got %+v", assistant.ToolCalls)
	}
	if len(assistant.Content) != 2 {
		t.Fatalf("expected two text parts, got %+v", assistant.Content)
	}
	if assistant.Content[0].Text != "Checking." || assistant.Content[1].Text != "Still looking. Almost." {
		t.Fatalf("text after the tool call merged into earlier text: %+v", assistant.Content)
	}
}

func TestFinegrainedContextKeepsToolResponsesApart(t *testing.T) {
	store := NewStore()
	now := time.Now()

	store.AddToolCallRequest("a", `{}`, "call_a", now)
	store.AddToolCallRequest("b", `{}`, "call_b", now)
	store.AddToolCallResponse("call_a", nil, "A", now)
	store.AddToolCallResponse("call_b", nil, "B", now)

	messages, err := store.FinegrainedContext(now.Add(-time.Second), now)
	if err != nil {
		t.Fatalf("FinegrainedContext failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %+v", messages)
	}
	if len(messages[0].ToolCalls) != 2 {
		t.Fatalf("expected both calls on one assistant message, got %+v", messages[0])
	}
	if messages[1].ToolCallID != "call_a" || messages[2].ToolCallID != "call_b" {
		t.Fatalf("tool responses merged or reordered: %+v", messages[1:])
	}
}

func TestFinegrainedContextFiltersOnlyImages(t *testing.T) {
	store := NewStore()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	store.AddImage(testImage(), start.Add(-time.Minute))
	store.AddText("old words", llms.RoleUser, start.Add(-time.Minute))
	store.AddImage(testImage(), start.Add(time.Second))
	store.AddImage(testImage(), start.Add(time.Minute))

	messages, err := store.FinegrainedContext(start, start.Add(5*time.Second))
	if err != nil {
		t.Fatalf("FinegrainedContext failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected one user message, got %+v", messages)
	}

	var images, texts int
	for _, part := range messages[0].Content {
		switch part.Type {
		case llms.PartTypeImage:
			images++
		case llms.PartTypeText:
			texts++
		}
	}
	if images != 1 || texts != 1 {
		t.Fatalf("expected 1 image and 1 text part, got %d and %d", images, texts)
	}
}

func TestLatestFinegrainedContextUsesClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return now }))

	store.AddImage(testImage(), now.Add(-31*time.Second))
	store.AddImage(testImage(), now.Add(-29*time.Second))

	messages, err := store.LatestFinegrainedContext()
	if err != nil {
		t.Fatalf("LatestFinegrainedContext failed: %v", err)
	}
	if len(messages) != 1 || len(messages[0].Content) != 1 {
		t.Fatalf("expected only the recent image, got %+v", messages)
	}
}
