package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-vision/core/llms"
)

type recallArgs struct {
	Query string `json:"query"`
}

func newSSEServer(t *testing.T, chunks []string, received *requestBody) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if received != nil {
			if err := json.NewDecoder(r.Body).Decode(received); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStreamYieldsDeltas(t *testing.T) {
	chunks := []string{
		`{"choices":[{"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"recall","arguments":"{\"query\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"desk\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}],"x_groq":{"usage":{"total_tokens":12}}}`,
	}
	var received requestBody
	server := newSSEServer(t, chunks, &received)
	defer server.Close()

	client := NewClient("test-key", WithURL(server.URL), WithHTTPClient(server.Client()))
	tool := llms.NewTool("recall", "Recalls.", func(context.Context, recallArgs) (llms.ToolResult, error) {
		return llms.ToolResult{}, nil
	})
	stream := client.PromptWithStream(context.Background(),
		llms.WithSystemPrompt("be brief"),
		llms.WithMessages(llms.NewTextMessage(llms.RoleUser, "hi")),
		llms.WithTools(tool),
	)

	accumulator := llms.NewAccumulator()
	var text strings.Builder
	var calls []llms.ToolCall
	for delta, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("stream failed: %v", err)
		}
		for _, event := range accumulator.Add(delta) {
			switch event.Type {
			case llms.EventTypeText:
				text.WriteString(event.Content)
			case llms.EventTypeToolCall:
				calls = append(calls, event.ToolCall)
			}
		}
	}

	if text.String() != "Hello" {
		t.Fatalf("unexpected text %q", text.String())
	}
	if len(calls) != 1 || calls[0].ID != "call_1" || calls[0].Arguments != `{"query":"desk"}` {
		t.Fatalf("unexpected tool calls %+v", calls)
	}

	if received.Model != DefaultModel || !received.Stream {
		t.Fatalf("unexpected request %+v", received)
	}
	if len(received.Tools) != 1 || received.Tools[0].Function.Name != "recall" || received.Tools[0].Type != "function" {
		t.Fatalf("tools not sent: %+v", received.Tools)
	}
	if received.ToolChoice == nil || *received.ToolChoice != "auto" {
		t.Fatalf("expected auto tool choice, got %v", received.ToolChoice)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != messageRoleSystem {
		t.Fatalf("unexpected messages %+v", received.Messages)
	}
}

func TestStreamReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("test-key", WithURL(server.URL), WithHTTPClient(server.Client()))
	var gotErr error
	for _, err := range client.PromptWithStream(context.Background()).Chunks(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "429") {
		t.Fatalf("expected status error, got %v", gotErr)
	}
}

func TestPromptForcedToolCall(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","tool_calls":[{"index":0,"id":"c","type":"function","function":{"name":"direct_response","arguments":"{\"response\":\"hi\"}"}}]}}]}`)
	}))
	defer server.Close()

	client := NewClient("test-key", WithURL(server.URL), WithHTTPClient(server.Client()))
	tool := llms.NewTool("direct_response", "Responds.", func(context.Context, recallArgs) (llms.ToolResult, error) {
		return llms.ToolResult{}, nil
	})
	response, err := client.Prompt(context.Background(), llms.WithTools(tool), llms.WithForcedToolsCall(), llms.WithModel("other"))
	if err != nil {
		t.Fatalf("Prompt failed: %v", err)
	}

	if received.Stream || received.Model != "other" {
		t.Fatalf("unexpected request %+v", received)
	}
	if received.ToolChoice == nil || *received.ToolChoice != "required" {
		t.Fatalf("expected required tool choice, got %v", received.ToolChoice)
	}
	if len(response.ToolCalls) != 1 || response.ToolCalls[0].Arguments != `{"response":"hi"}` {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestToMessagesImages(t *testing.T) {
	messages := toMessages("", []llms.Message{{
		Role:    llms.RoleUser,
		Content: []llms.ContentPart{llms.TextPart("look"), llms.ImagePart("data:image/png;base64,AA")},
	}})

	parts, ok := messages[0].Content.([]contentPart)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected content parts, got %#v", messages[0].Content)
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,AA" {
		t.Fatalf("unexpected image part %+v", parts[1])
	}
}
