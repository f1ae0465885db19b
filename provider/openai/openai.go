// Package openai implements the OpenAI-compatible provider adapter on the
// Chat Completions API, including streaming and function/tool calling. The
// same adapter serves Grok and DeepSeek: both speak this protocol and only
// the base URL, key and registry name differ.
package openai

import (
	"context"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/8agana/polychat/core"
	"github.com/8agana/polychat/provider"
)

// Options configure the adapter. Fields mirror a subset of Chat Completion
// parameters intentionally kept minimal; extend via functional options
// without breaking callers.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Provider wraps the OpenAI Chat Completions API behind the generic
// provider.Provider interface.
type Provider struct {
	name   string
	client *openai.Client
	opts   Options
}

// New creates an adapter registered under name using the official client.
func New(name string, optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Provider{name: name, client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client, used by tests
// that point the SDK at a fixture server.
func NewFromClient(name string, client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{name: name, client: client, opts: opts}
}

// Name returns the registry key of this adapter instance.
func (p *Provider) Name() string { return p.name }

// DefaultModel returns the configured default model.
func (p *Provider) DefaultModel() string { return p.opts.Model }

// ListModels queries the /models endpoint.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, &provider.NetworkError{Provider: p.name, Err: err}
	}
	out := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, m.ID)
	}
	sort.Strings(out)
	return out, nil
}

// Chat performs a buffered completion.
func (p *Provider) Chat(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params := p.buildParams(req)
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &provider.NetworkError{Provider: p.name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &provider.ProtocolError{Provider: p.name, Detail: "response carries no choices"}
	}

	ch0 := resp.Choices[0]
	out := &provider.Response{Text: ch0.Message.Content}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &provider.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		}
	}
	return out, nil
}

// aggCall tracks id/name for a streamed tool call index so argument deltas
// can be keyed by call id in the normalized events.
type aggCall struct {
	id   string
	name string
}

// ChatStream performs a streaming completion, translating SDK chunks into
// normalized events. Argument fragments arrive as successive deltas keyed
// by call index and are re-keyed to the call id; completion events for all
// calls are emitted in index order when the finish chunk arrives.
func (p *Provider) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Event, <-chan error) {
	out := make(chan provider.Event, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := p.buildParams(req)
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)

		agg := map[int64]*aggCall{}
		var idxOrder []int64
		var usage *provider.Usage
		finished := false

		for stream.Next() {
			ck := stream.Current()
			if ck.Usage.TotalTokens > 0 {
				usage = &provider.Usage{
					InputTokens:  int(ck.Usage.PromptTokens),
					OutputTokens: int(ck.Usage.CompletionTokens),
					TotalTokens:  int(ck.Usage.TotalTokens),
				}
			}
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					out <- provider.TextDelta{Text: ch.Delta.Content}
				}
				for _, tc := range ch.Delta.ToolCalls {
					ac, ok := agg[tc.Index]
					if !ok {
						ac = &aggCall{}
						agg[tc.Index] = ac
						idxOrder = append(idxOrder, tc.Index)
					}
					if tc.ID != "" && ac.id == "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" && ac.name == "" {
						ac.name = tc.Function.Name
						out <- provider.ToolCallStarted{ID: ac.id, Name: ac.name}
					}
					if tc.Function.Arguments != "" {
						out <- provider.ToolCallArgDelta{ID: ac.id, Fragment: tc.Function.Arguments}
					}
				}
				if ch.FinishReason != "" && !finished {
					finished = true
					for _, idx := range idxOrder {
						out <- provider.ToolCallCompleted{ID: agg[idx].id}
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- &provider.NetworkError{Provider: p.name, Err: err}
			return
		}
		out <- provider.Done{Usage: usage}
	}()

	return out, errCh
}

// buildParams assembles the request parameters including tool definitions.
func (p *Provider) buildParams(req provider.Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.opts.Model
	}
	temperature := p.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts the normalized log into chat messages. The log is
// already in causal order, so roles map one to one; assistant messages that
// requested tools keep their tool_calls field so later tool messages stay
// attached to their originating ids.
func buildMessages(req provider.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case core.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return messages
}
