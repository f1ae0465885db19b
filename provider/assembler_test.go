package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, a *StreamAssembler, evs ...Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, a.Feed(ev))
	}
}

func TestAssemblerTextOnly(t *testing.T) {
	var chunks []string
	a := NewStreamAssembler("test", func(s string) { chunks = append(chunks, s) })

	assert.Equal(t, StateIdle, a.State())

	feedAll(t, a,
		TextDelta{Text: "Hel"},
		TextDelta{Text: "lo"},
		Done{Usage: &Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}},
	)
	assert.Equal(t, StateComplete, a.State())

	// Deltas were forwarded immediately and unmodified.
	assert.Equal(t, []string{"Hel", "lo"}, chunks)

	resp, callErrs := a.Response()
	assert.Nil(t, callErrs)
	assert.Equal(t, "Hello", resp.Text)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestAssemblerInterleavedCalls(t *testing.T) {
	a := NewStreamAssembler("test", nil)

	feedAll(t, a,
		TextDelta{Text: "thinking "},
		ToolCallStarted{ID: "a", Name: "read_file"},
		ToolCallStarted{ID: "b", Name: "echo"},
		ToolCallArgDelta{ID: "b", Fragment: `{"text":`},
		ToolCallArgDelta{ID: "a", Fragment: `{"path":"x.txt"}`},
		ToolCallArgDelta{ID: "b", Fragment: `"hi"}`},
		ToolCallCompleted{ID: "a"},
		ToolCallCompleted{ID: "b"},
		Done{},
	)

	resp, callErrs := a.Response()
	assert.Nil(t, callErrs)
	assert.Equal(t, "thinking ", resp.Text)

	// Calls come back in start order with their fragments reassembled.
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "a", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"path":"x.txt"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, "b", resp.ToolCalls[1].ID)
	assert.JSONEq(t, `{"text":"hi"}`, string(resp.ToolCalls[1].Arguments))
}

func TestAssemblerEmptyArgsBecomeEmptyObject(t *testing.T) {
	a := NewStreamAssembler("test", nil)

	feedAll(t, a,
		ToolCallStarted{ID: "a", Name: "echo"},
		ToolCallCompleted{ID: "a"},
		Done{},
	)

	resp, callErrs := a.Response()
	assert.Nil(t, callErrs)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "{}", string(resp.ToolCalls[0].Arguments))
}

func TestAssemblerMalformedArgsScopedToCall(t *testing.T) {
	a := NewStreamAssembler("test", nil)

	feedAll(t, a,
		ToolCallStarted{ID: "bad", Name: "echo"},
		ToolCallArgDelta{ID: "bad", Fragment: `{"text":`},
		ToolCallCompleted{ID: "bad"},
		ToolCallStarted{ID: "good", Name: "echo"},
		ToolCallArgDelta{ID: "good", Fragment: `{"text":"ok"}`},
		ToolCallCompleted{ID: "good"},
		Done{},
	)

	resp, callErrs := a.Response()

	// The malformed call is reported but does not poison its sibling.
	require.Len(t, callErrs, 1)
	var protoErr *ProtocolError
	require.ErrorAs(t, callErrs["bad"], &protoErr)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, `{"text":`, string(resp.ToolCalls[0].Arguments))
	assert.JSONEq(t, `{"text":"ok"}`, string(resp.ToolCalls[1].Arguments))
}

func TestAssemblerIncompleteCallReported(t *testing.T) {
	a := NewStreamAssembler("test", nil)

	feedAll(t, a,
		ToolCallStarted{ID: "a", Name: "echo"},
		ToolCallArgDelta{ID: "a", Fragment: `{"text":"hi"}`},
		Done{},
	)

	_, callErrs := a.Response()
	require.Len(t, callErrs, 1)
	assert.Contains(t, callErrs["a"].Error(), "before tool call")
}

func TestAssemblerProtocolViolations(t *testing.T) {
	t.Run("duplicate call id", func(t *testing.T) {
		a := NewStreamAssembler("test", nil)
		feedAll(t, a, ToolCallStarted{ID: "a", Name: "echo"})
		err := a.Feed(ToolCallStarted{ID: "a", Name: "echo"})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("delta for unknown call", func(t *testing.T) {
		a := NewStreamAssembler("test", nil)
		err := a.Feed(ToolCallArgDelta{ID: "ghost", Fragment: "{}"})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("delta after completion", func(t *testing.T) {
		a := NewStreamAssembler("test", nil)
		feedAll(t, a,
			ToolCallStarted{ID: "a", Name: "echo"},
			ToolCallCompleted{ID: "a"},
		)
		err := a.Feed(ToolCallArgDelta{ID: "a", Fragment: "{}"})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("event after done", func(t *testing.T) {
		a := NewStreamAssembler("test", nil)
		feedAll(t, a, Done{})
		err := a.Feed(TextDelta{Text: "late"})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("completion for unknown call", func(t *testing.T) {
		a := NewStreamAssembler("test", nil)
		err := a.Feed(ToolCallCompleted{ID: "ghost"})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})
}

func TestConsumeTransportError(t *testing.T) {
	events := make(chan Event)
	errCh := make(chan error, 1)
	go func() {
		events <- TextDelta{Text: "partial"}
		errCh <- &NetworkError{Provider: "test", Err: assert.AnError}
		close(events)
	}()

	_, _, err := Consume(events, errCh, NewStreamAssembler("test", nil))
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
