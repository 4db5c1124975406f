package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	// Execute runs the tool with the raw JSON arguments produced by the model.
	Execute func(ctx context.Context, arguments string) (ToolResult, error) `json:"-"`
}

type ToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// ToolResult is what a tool hands back: a structured payload for the log and
// a formatted string that is shown to the model.
type ToolResult struct {
	Structured json.RawMessage
	Formatted  string
}

// NewTool builds a strict function tool whose parameter schema is reflected
// from T. Arguments are decoded into T before execute is called.
func NewTool[T any](name, description string, execute func(ctx context.Context, args T) (ToolResult, error)) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  ReflectSchema[T](),
			Strict:      true,
		},
		Execute: func(ctx context.Context, arguments string) (ToolResult, error) {
			var args T
			if err := json.Unmarshal([]byte(arguments), &args); err != nil {
				return ToolResult{}, fmt.Errorf("invalid arguments for %s: %w", name, err)
			}
			return execute(ctx, args)
		},
	}
}

// ReflectSchema returns an inlined JSON schema for T that closes the object
// to additional properties, as strict function calling requires.
func ReflectSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	schema.ID = ""
	return schema
}

// SchemaMap renders the schema as a generic JSON object.
func SchemaMap(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	return m, nil
}

// TextResult wraps a plain string answer as a tool result.
func TextResult(text string) ToolResult {
	structured, _ := json.Marshal(map[string]string{"result": text})
	return ToolResult{Structured: structured, Formatted: text}
}
