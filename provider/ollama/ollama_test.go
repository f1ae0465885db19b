package ollama

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
	return New(func(o *Options) {
		o.BaseURL = server.URL
	})
}

func TestChatAccumulatesNDJSON(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		fmt.Fprintln(w, `{"response":"Hel","done":false}`)
		fmt.Fprintln(w, `{"response":"lo","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})

	resp, err := p.Chat(context.Background(), provider.Request{
		System: "be terse",
		Messages: []core.Message{
			core.UserMessage("hi"),
			core.AssistantMessage("earlier answer"),
			core.UserMessage("again"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Text)

	assert.Equal(t, "llama3.1", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])

	// The history flattens into one prompt ending with the assistant cue.
	prompt := gotBody["prompt"].(string)
	assert.Contains(t, prompt, "system: be terse\n\n")
	assert.Contains(t, prompt, "user: hi\n\n")
	assert.Contains(t, prompt, "assistant: earlier answer\n\n")
	assert.True(t, len(prompt) > len("assistant: "))
	assert.Equal(t, "assistant: ", prompt[len(prompt)-len("assistant: "):])
}

func TestChatStreamEmitsDeltas(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, true, body["stream"])

		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"response":"b","done":false}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})

	events, errCh := p.ChatStream(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
	})

	var deltas []string
	for ev := range events {
		switch e := ev.(type) {
		case provider.TextDelta:
			deltas = append(deltas, e.Text)
		case provider.Done:
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestToolsRejectedWithCapabilityError(t *testing.T) {
	p := New() // never reaches the network

	_, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
		Tools:    []provider.ToolSpec{{Name: "echo"}},
	})
	var capErr *provider.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "ollama", capErr.Provider)

	_, errCh := p.ChatStream(context.Background(), provider.Request{
		Tools: []provider.ToolSpec{{Name: "echo"}},
	})
	require.ErrorAs(t, <-errCh, &capErr)
}

func TestChatServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
	})
	var netErr *provider.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestChatMalformedLine(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{not json`)
	})

	_, err := p.Chat(context.Background(), provider.Request{
		Messages: []core.Message{core.UserMessage("hi")},
	})
	var protoErr *provider.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:latest"},{"name":"mistral:7b"}]}`)
	})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:latest", "mistral:7b"}, models)
}
