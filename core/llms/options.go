package llms

import "slices"

// PromptOptions collects everything a completion request needs.
type PromptOptions struct {
	Instructions    string
	Messages        []Message
	Tools           []Tool
	ForcedToolsCall bool
	Model           string
}

type PromptOption func(*PromptOptions)

func NewPromptOptions(opts ...PromptOption) PromptOptions {
	options := PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithSystemPrompt sets the system prompt for the prompt.
// Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) PromptOption {
	return func(opts *PromptOptions) {
		opts.Instructions = prompt
	}
}

// WithMessages appends messages to the prompt in order.
func WithMessages(messages ...Message) PromptOption {
	return func(opts *PromptOptions) {
		opts.Messages = append(opts.Messages, messages...)
	}
}

// WithTools makes the tools available to the model. Repeating the option
// adds to the previously given tools.
func WithTools(tools ...Tool) PromptOption {
	return func(opts *PromptOptions) {
		opts.Tools = append(slices.Clone(opts.Tools), tools...)
	}
}

// WithForcedToolsCall requires the model to answer with a tool call.
func WithForcedToolsCall() PromptOption {
	return func(opts *PromptOptions) {
		opts.ForcedToolsCall = true
	}
}

// WithModel overrides the client's default model for a single request.
func WithModel(model string) PromptOption {
	return func(opts *PromptOptions) {
		opts.Model = model
	}
}
