package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/8agana/polychat/core"
	"github.com/8agana/polychat/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("openai", func(o *Options) {
		o.APIKey = "sk-test"
		o.BaseURL = server.URL
	})
}

func TestChatText(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "hello there"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	})

	resp, err := p.Chat(context.Background(), provider.Request{
		System:   "be terse",
		Messages: []core.Message{core.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Text)
	assert.Empty(t, resp.ToolCalls)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	// The system prompt leads the outgoing message list.
	msgs := gotBody["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be terse", first["content"])
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
}

func TestChatToolCalls(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-2",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "read_file", "arguments": "{\"path\":\"x.txt\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	})

	resp, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("read x.txt")},
		Tools: []provider.ToolSpec{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_abc", resp.ToolCalls[0].ID)
	assert.Equal(t, "read_file", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"x.txt"}`, string(resp.ToolCalls[0].Arguments))
}

func TestChatNoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cmpl-3", "object": "chat.completion", "choices": []}`)
	})

	_, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
	})
	var protoErr *provider.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestChatRoundTripsToolHistory(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-4",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "done"}, "finish_reason": "stop"}]
		}`)
	})

	_, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{
			core.UserMessage("read it"),
			core.AssistantToolCalls("", []core.ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"x"}`)},
			}),
			core.ToolResultMessage("call_1", "read_file", `{"content":"data"}`),
		},
	})
	require.NoError(t, err)

	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])

	toolMsg := msgs[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
}

func sseChunk(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestChatStreamText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`)
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`)
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	events, errCh := p.ChatStream(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
	})

	asm := provider.NewStreamAssembler("openai", nil)
	resp, callErrs, err := provider.Consume(events, errCh, asm)
	require.NoError(t, err)
	assert.Nil(t, callErrs)

	assert.Equal(t, "Hello", resp.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestChatStreamToolCall(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_x","type":"function","function":{"name":"echo","arguments":""}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"text\":"}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"hi\"}"}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	events, errCh := p.ChatStream(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("echo hi")},
	})

	resp, callErrs, err := provider.Consume(events, errCh, provider.NewStreamAssembler("openai", nil))
	require.NoError(t, err)
	assert.Nil(t, callErrs)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_x", resp.ToolCalls[0].ID)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"text":"hi"}`, string(resp.ToolCalls[0].Arguments))
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o","object":"model"},{"id":"gpt-4o-mini","object":"model"}]}`)
	})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)
}
