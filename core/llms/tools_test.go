package llms

import (
	"context"
	"testing"
)

type lookupArgs struct {
	Query string `json:"query" jsonschema:"description=What to look up"`
}

func TestNewToolDecodesArguments(t *testing.T) {
	var got string
	tool := NewTool("lookup", "Looks things up", func(_ context.Context, args lookupArgs) (ToolResult, error) {
		got = args.Query
		return TextResult("found " + args.Query), nil
	})

	result, err := tool.Execute(context.Background(), `{"query":"keys"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "keys" || result.Formatted != "found keys" {
		t.Fatalf("unexpected result %q / %q", got, result.Formatted)
	}
	if string(result.Structured) != `{"result":"found keys"}` {
		t.Fatalf("unexpected structured result %s", result.Structured)
	}

	if _, err := tool.Execute(context.Background(), `not json`); err == nil {
		t.Fatalf("expected invalid arguments to fail")
	}
}

func TestReflectSchemaIsInlinedAndClosed(t *testing.T) {
	schema, err := SchemaMap(ReflectSchema[lookupArgs]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := schema["$schema"]; ok {
		t.Fatalf("expected no $schema key, got %v", schema)
	}
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("expected additionalProperties false, got %v", schema["additionalProperties"])
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("expected query to be required, got %v", schema["required"])
	}
}
