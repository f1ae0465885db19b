// Package provider defines the normalized contract between the conversation
// engine and the LLM backends. Each backend lives in a subpackage
// (provider/openai, provider/anthropic, provider/ollama) and translates the
// normalized Request into its wire format and the wire response back into a
// Response or a stream of Events. The engine never sees vendor types.
package provider

import (
	"context"

	"github.com/8agana/polychat/core"
)

// ToolSpec is the provider-facing description of a callable tool. The
// policy flag (read-only vs not) is deliberately absent: tools the model is
// not permitted to call are filtered out before a request is built and are
// never advertised.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures one normalized model invocation. Adapters serialize only
// the fields their protocol understands.
type Request struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []core.Message `json:"messages"`
	Tools       []ToolSpec     `json:"tools,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int64          `json:"max_tokens,omitempty"`
}

// Usage captures token accounting when the backend reports it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is a fully buffered normalized model response: final text,
// ordered tool calls, or both.
type Response struct {
	Text      string          `json:"text,omitempty"`
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
}

// Provider is the capability interface every backend adapter implements.
//
// Chat performs a buffered round trip. ChatStream performs a streaming round
// trip and delivers normalized events on the returned channel in arrival
// order; the error channel carries at most one error and both channels are
// closed when the stream ends. Backends without a streaming tool-call
// protocol still stream plain text.
type Provider interface {
	// Name returns the registry key of this backend ("openai", "grok", ...).
	Name() string

	// DefaultModel returns the configured model used when a request does
	// not name one.
	DefaultModel() string

	// ListModels enumerates the models the backend offers.
	ListModels(ctx context.Context) ([]string, error)

	// Chat performs a buffered request.
	Chat(ctx context.Context, req Request) (*Response, error)

	// ChatStream performs a streaming request.
	ChatStream(ctx context.Context, req Request) (<-chan Event, <-chan error)
}
