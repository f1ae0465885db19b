// Package ollama implements the provider adapter for a local Ollama
// server. The protocol is a single JSON request answered by
// newline-delimited JSON objects {response, done}; it has no structured
// tool-calling, so requests that advertise tools fail with a capability
// error instead of guessing at a text convention.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/8agana/polychat/provider"
)

// Options configure the adapter.
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Provider speaks the Ollama NDJSON protocol over plain HTTP.
type Provider struct {
	client  *http.Client
	baseURL string
	model   string
}

// New creates an adapter. The zero options target a local server.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Provider{
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
	}
}

// Name returns the registry key of this adapter.
func (p *Provider) Name() string { return "ollama" }

// DefaultModel returns the configured default model.
func (p *Provider) DefaultModel() string { return p.model }

// ListModels queries /api/tags for locally available models.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &provider.NetworkError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &provider.NetworkError{Provider: p.Name(), Err: fmt.Errorf("status %s", resp.Status)}
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &provider.ProtocolError{Provider: p.Name(), Detail: "decoding /api/tags response", Err: err}
	}
	out := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		out = append(out, m.Name)
	}
	return out, nil
}

// generateRequest is the single-object wire request.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int64    `json:"num_predict,omitempty"`
}

// generateChunk is one NDJSON reply line.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Chat performs a buffered generation. Tool specs in the request fail with
// a capability error: the protocol cannot express structured tool calls.
func (p *Provider) Chat(ctx context.Context, req provider.Request) (*provider.Response, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Even with stream:false some servers answer with NDJSON; accumulate
	// every line until done.
	var text strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sawLine := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, &provider.ProtocolError{Provider: p.Name(), Detail: "decoding response line", Err: err}
		}
		sawLine = true
		text.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &provider.NetworkError{Provider: p.Name(), Err: err}
	}
	if !sawLine {
		return nil, &provider.ProtocolError{Provider: p.Name(), Detail: "empty response body"}
	}
	return &provider.Response{Text: text.String()}, nil
}

// ChatStream performs a streaming generation, emitting one TextDelta per
// NDJSON line until the line flagged done.
func (p *Provider) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Event, <-chan error) {
	out := make(chan provider.Event, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := p.send(ctx, req, true)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var chunk generateChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				errCh <- &provider.ProtocolError{Provider: p.Name(), Detail: "decoding stream line", Err: err}
				return
			}
			if chunk.Response != "" {
				out <- provider.TextDelta{Text: chunk.Response}
			}
			if chunk.Done {
				out <- provider.Done{}
				return
			}
		}
		if err := sc.Err(); err != nil {
			errCh <- &provider.NetworkError{Provider: p.Name(), Err: err}
			return
		}
		out <- provider.Done{}
	}()

	return out, errCh
}

func (p *Provider) send(ctx context.Context, req provider.Request, stream bool) (*http.Response, error) {
	if len(req.Tools) > 0 {
		return nil, &provider.CapabilityError{Provider: p.Name(), Capability: "structured tool calling"}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	body := generateRequest{
		Model:  model,
		Prompt: flatten(req),
		Stream: stream,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &provider.NetworkError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &provider.NetworkError{Provider: p.Name(), Err: fmt.Errorf("status %s", resp.Status)}
	}
	return resp, nil
}

// flatten renders the conversation into a single prompt, since the
// generate endpoint takes one document rather than a message list.
func flatten(req provider.Request) string {
	var b strings.Builder
	writeTurn := func(role, content string) {
		if content == "" {
			return
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	writeTurn("system", req.System)
	for _, m := range req.Messages {
		writeTurn(string(m.Role), m.Content)
	}
	b.WriteString("assistant: ")
	return b.String()
}

var _ provider.Provider = (*Provider)(nil)
