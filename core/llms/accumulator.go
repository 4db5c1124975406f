package llms

import (
	"context"
	"encoding/json"
	"slices"
)

type EventType string

const (
	EventTypeText     EventType = "text"
	EventTypeToolCall EventType = "tool_call"
)

// Event is produced by the Accumulator: either a text fragment or a tool call
// whose fragments have all arrived.
type Event struct {
	Type     EventType
	Content  string
	ToolCall ToolCall
}

// Accumulator merges streamed tool call fragments keyed by stream index.
// A call is emitted once its id, name and arguments are present, the
// arguments are valid JSON and the id has not been emitted before. Calls whose
// arguments never become valid are never emitted.
type Accumulator struct {
	calls   map[int]*ToolCall
	emitted map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		calls:   map[int]*ToolCall{},
		emitted: map[string]struct{}{},
	}
}

// Add applies one delta and returns the events it completes. Tool call events
// come before the text event of the same delta.
func (a *Accumulator) Add(delta Delta) []Event {
	var events []Event

	for _, fragment := range delta.ToolCalls {
		call, ok := a.calls[fragment.Index]
		if !ok {
			call = &ToolCall{}
			a.calls[fragment.Index] = call
		}
		if call.ID == "" && fragment.ID != "" {
			call.ID = fragment.ID
		}
		call.Name += fragment.Name
		call.Arguments += fragment.Arguments
	}

	indices := make([]int, 0, len(a.calls))
	for index := range a.calls {
		indices = append(indices, index)
	}
	slices.Sort(indices)

	for _, index := range indices {
		call := a.calls[index]
		if !a.isComplete(call) {
			continue
		}
		a.emitted[call.ID] = struct{}{}
		events = append(events, Event{Type: EventTypeToolCall, ToolCall: *call})
	}

	if delta.Content != nil {
		events = append(events, Event{Type: EventTypeText, Content: *delta.Content})
	}

	return events
}

func (a *Accumulator) isComplete(call *ToolCall) bool {
	if call.ID == "" || call.Name == "" || call.Arguments == "" {
		return false
	}
	if _, ok := a.emitted[call.ID]; ok {
		return false
	}
	return json.Valid([]byte(call.Arguments))
}

// Accumulate ranges over the stream and yields the events of each delta as
// one batch, so callers can act between deltas. Deltas that complete nothing
// still yield an empty batch. A stream error is yielded once and ends the
// iteration.
func Accumulate(ctx context.Context, stream Stream) func(func([]Event, error) bool) {
	return func(yield func([]Event, error) bool) {
		accumulator := NewAccumulator()
		for delta, err := range stream.Chunks(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(accumulator.Add(delta), nil) {
				return
			}
		}
	}
}
