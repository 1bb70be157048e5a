// Package ai defines the model-invocation capability injected into
// cascade tiers, plus an Anthropic-backed implementation.
package ai

import "context"

// Params describes a single model invocation.
type Params struct {
	// Prompt is the user prompt.
	Prompt string
	// System is an optional system prompt.
	System string
	// MaxTokens caps the response length. Zero uses the client default.
	MaxTokens int64
	// Metadata carries opaque request metadata, e.g. gateway options.
	Metadata map[string]any
}

// Result is the outcome of a model invocation.
type Result struct {
	// Response is the model's text output.
	Response string
	// InputTokens and OutputTokens report usage for this call.
	InputTokens  int64
	OutputTokens int64
}

// Invoker runs a model invocation. The cascade engine never inspects
// the model identifier; it is passed through opaquely.
type Invoker interface {
	Run(ctx context.Context, model string, params Params) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, model string, params Params) (*Result, error)

// Run calls f.
func (f InvokerFunc) Run(ctx context.Context, model string, params Params) (*Result, error) {
	return f(ctx, model, params)
}
