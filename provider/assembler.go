package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/8agana/polychat/core"
)

// AssemblerState is the reducer state of a StreamAssembler.
type AssemblerState int

const (
	// StateIdle means no event has been consumed yet.
	StateIdle AssemblerState = iota
	// StateText means the last consumed event was a text delta.
	StateText
	// StateToolArgs means at least one tool call is accumulating arguments.
	StateToolArgs
	// StateComplete means Done was consumed; Feed rejects further events.
	StateComplete
)

// partialCall buffers the argument fragments of one streamed tool call.
type partialCall struct {
	id       string
	name     string
	args     strings.Builder
	complete bool
}

// StreamAssembler is a single-threaded cooperative reducer over normalized
// stream events. Text deltas are forwarded to the onText callback
// immediately, with no buffering, so callers can render incrementally.
// Argument fragments are concatenated per call id in arrival order and only
// parsed once the call completes; a malformed document yields a
// ProtocolError scoped to that call, never to the whole turn.
type StreamAssembler struct {
	provider string
	onText   func(string)

	state    AssemblerState
	text     strings.Builder
	calls    map[string]*partialCall
	order    []string
	callErrs map[string]error
	usage    *Usage
}

// NewStreamAssembler creates an assembler. onText may be nil when the
// caller does not render incrementally; providerName labels errors.
func NewStreamAssembler(providerName string, onText func(string)) *StreamAssembler {
	return &StreamAssembler{
		provider: providerName,
		onText:   onText,
		state:    StateIdle,
		calls:    make(map[string]*partialCall),
		callErrs: make(map[string]error),
	}
}

// State returns the current reducer state.
func (a *StreamAssembler) State() AssemblerState { return a.state }

// Feed consumes one event. Events must arrive in stream order; feeding
// after Done is a ProtocolError.
func (a *StreamAssembler) Feed(ev Event) error {
	if a.state == StateComplete {
		return &ProtocolError{Provider: a.provider, Detail: "event after end of stream"}
	}

	switch e := ev.(type) {
	case TextDelta:
		a.state = StateText
		a.text.WriteString(e.Text)
		if a.onText != nil {
			a.onText(e.Text)
		}

	case ToolCallStarted:
		if _, exists := a.calls[e.ID]; exists {
			return &ProtocolError{Provider: a.provider, Detail: fmt.Sprintf("duplicate tool call id %q", e.ID)}
		}
		a.state = StateToolArgs
		a.calls[e.ID] = &partialCall{id: e.ID, name: e.Name}
		a.order = append(a.order, e.ID)

	case ToolCallArgDelta:
		pc, ok := a.calls[e.ID]
		if !ok {
			return &ProtocolError{Provider: a.provider, Detail: fmt.Sprintf("argument delta for unknown call %q", e.ID)}
		}
		if pc.complete {
			return &ProtocolError{Provider: a.provider, Detail: fmt.Sprintf("argument delta after completion of call %q", e.ID)}
		}
		a.state = StateToolArgs
		pc.args.WriteString(e.Fragment)

	case ToolCallCompleted:
		pc, ok := a.calls[e.ID]
		if !ok {
			return &ProtocolError{Provider: a.provider, Detail: fmt.Sprintf("completion for unknown call %q", e.ID)}
		}
		pc.complete = true
		raw := pc.args.String()
		if raw == "" {
			pc.args.WriteString("{}")
		} else if !json.Valid([]byte(raw)) {
			a.callErrs[e.ID] = &ProtocolError{
				Provider: a.provider,
				Detail:   fmt.Sprintf("tool call %q arguments are not valid JSON", e.ID),
			}
		}

	case Done:
		a.usage = e.Usage
		a.state = StateComplete

	default:
		return &ProtocolError{Provider: a.provider, Detail: fmt.Sprintf("unknown event %T", ev)}
	}

	return nil
}

// Text returns the text accumulated so far.
func (a *StreamAssembler) Text() string { return a.text.String() }

// Response reduces the consumed stream into a buffered-equivalent Response
// plus any per-call argument errors keyed by call id. Calls whose argument
// documents failed to parse are still present, carrying their raw
// concatenation, so the caller can answer them with an error result and
// keep the conversation's id invariants intact.
func (a *StreamAssembler) Response() (*Response, map[string]error) {
	resp := &Response{Text: a.text.String(), Usage: a.usage}
	for _, id := range a.order {
		pc := a.calls[id]
		if !pc.complete {
			a.callErrs[id] = &ProtocolError{
				Provider: a.provider,
				Detail:   fmt.Sprintf("stream ended before tool call %q completed", id),
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: json.RawMessage(pc.args.String()),
		})
	}
	if len(a.callErrs) == 0 {
		return resp, nil
	}
	return resp, a.callErrs
}

// Consume drains an event channel into the assembler and reduces it. A
// transport error from errCh aborts the whole turn.
func Consume(events <-chan Event, errCh <-chan error, a *StreamAssembler) (*Response, map[string]error, error) {
	for ev := range events {
		if err := a.Feed(ev); err != nil {
			return nil, nil, err
		}
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	resp, callErrs := a.Response()
	return resp, callErrs, nil
}
