// Package anthropic implements the provider adapter for the Anthropic
// Messages API. A response is a list of typed content blocks; text and
// tool_use blocks may interleave inside one message and are reduced into
// the normalized Response preserving order. Tool results travel back as a
// user message carrying a tool_result block keyed by the originating
// tool_use id, because this protocol ties results to ids rather than to a
// generic tool role.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/8agana/polychat/core"
	"github.com/8agana/polychat/provider"
)

// Options configure the adapter (model id, temperature, max tokens, API
// key, base URL).
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Provider wraps the Anthropic Messages API behind the generic
// provider.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates an adapter using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       "claude-3-5-sonnet-latest",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// Name returns the registry key of this adapter.
func (p *Provider) Name() string { return "anthropic" }

// DefaultModel returns the configured default model.
func (p *Provider) DefaultModel() string { return p.opts.Model }

// ListModels returns the configured default; the Messages API has no
// general model listing endpoint available to every account.
func (p *Provider) ListModels(context.Context) ([]string, error) {
	return []string{p.opts.Model}, nil
}

// Chat performs a buffered Messages call and reduces the content block
// list: text blocks concatenate in order, tool_use blocks become ToolCalls.
func (p *Provider) Chat(ctx context.Context, req provider.Request) (*provider.Response, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, &provider.NetworkError{Provider: p.Name(), Err: err}
	}
	if len(resp.Content) == 0 && resp.StopReason == "" {
		return nil, &provider.ProtocolError{Provider: p.Name(), Detail: "response carries no content blocks"}
	}

	out := &provider.Response{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args, err := json.Marshal(tu.Input)
			if err != nil {
				return nil, &provider.ProtocolError{Provider: p.Name(), Detail: "tool_use input is not serializable", Err: err}
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &provider.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}
	}
	return out, nil
}

// ChatStream performs a streaming Messages call. Block starts, input JSON
// deltas and block stops are re-keyed from block index to tool call id so
// downstream consumers never see protocol indices.
func (p *Provider) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Event, <-chan error) {
	out := make(chan provider.Event, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))

		idByIndex := map[int64]string{}
		var usage *provider.Usage

		for stream.Next() {
			ev := stream.Current()
			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock.Type == "tool_use" {
					idByIndex[ev.Index] = ev.ContentBlock.ID
					out <- provider.ToolCallStarted{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
				}
			case "content_block_delta":
				switch ev.Delta.Type {
				case "text_delta":
					out <- provider.TextDelta{Text: ev.Delta.Text}
				case "input_json_delta":
					if id, ok := idByIndex[ev.Index]; ok {
						out <- provider.ToolCallArgDelta{ID: id, Fragment: ev.Delta.PartialJSON}
					}
				}
			case "content_block_stop":
				if id, ok := idByIndex[ev.Index]; ok {
					out <- provider.ToolCallCompleted{ID: id}
				}
			case "message_delta":
				if ev.Usage.OutputTokens > 0 {
					usage = &provider.Usage{
						InputTokens:  int(ev.Usage.InputTokens),
						OutputTokens: int(ev.Usage.OutputTokens),
						TotalTokens:  int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- &provider.NetworkError{Provider: p.Name(), Err: err}
			return
		}
		out <- provider.Done{Usage: usage}
	}()

	return out, errCh
}

// buildParams assembles the Messages request.
func (p *Provider) buildParams(req provider.Request) anthropic.MessageNewParams {
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

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    buildMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if system := collectSystem(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// collectSystem merges the request-level system prompt with any system
// messages in the log; the protocol has a single system field.
func collectSystem(req provider.Request) string {
	system := req.System
	for _, m := range req.Messages {
		if m.Role != core.RoleSystem {
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system
}

// buildMessages converts the normalized log to Messages-API turns.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case core.RoleUser:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case core.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = string(tc.Arguments) // fall back to the raw text
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case core.RoleTool:
			// Results are tied to the originating tool_use id inside a
			// user message, not a bare tool role.
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}
	return out
}

// buildTools converts normalized tool specs to the input_schema form.
func buildTools(tools []provider.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if t.Parameters != nil {
			if properties, exists := t.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch required := t.Parameters["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if out[i].OfTool != nil && t.Description != "" {
			out[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return out
}
