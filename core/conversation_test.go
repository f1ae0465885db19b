package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendOrder(t *testing.T) {
	c := NewConversation("s1")
	require.NoError(t, c.Append(UserMessage("hi")))
	require.NoError(t, c.Append(AssistantMessage("hello")))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, RoleUser, c.Messages[0].Role)
	assert.Equal(t, "hello", c.LastAssistantText())
}

func TestConversationToolCallIDInvariant(t *testing.T) {
	c := NewConversation("s1")
	require.NoError(t, c.Append(UserMessage("read it")))

	call := ToolCall{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"x"}`)}
	require.NoError(t, c.Append(AssistantToolCalls("", []ToolCall{call})))

	// Unknown id is rejected.
	err := c.Append(ToolResultMessage("call_999", "read_file", "nope"))
	assert.Error(t, err)

	// Matching id is accepted exactly once.
	require.NoError(t, c.Append(ToolResultMessage("call_1", "read_file", "contents")))
	err = c.Append(ToolResultMessage("call_1", "read_file", "again"))
	assert.Error(t, err, "a call id must be answered by exactly one tool message")
}

func TestConversationRejectsDuplicateCallIDs(t *testing.T) {
	c := NewConversation("s1")
	call := ToolCall{ID: "call_1", Name: "echo"}
	require.NoError(t, c.Append(AssistantToolCalls("", []ToolCall{call})))
	require.NoError(t, c.Append(ToolResultMessage("call_1", "echo", "ok")))

	err := c.Append(AssistantToolCalls("", []ToolCall{call}))
	assert.Error(t, err, "tool call ids must be unique within a conversation")
}

func TestConversationCloneIsolation(t *testing.T) {
	c := NewConversation("s1")
	require.NoError(t, c.Append(UserMessage("a")))

	cp := c.Clone()
	require.NoError(t, cp.Append(AssistantMessage("b")))
	cp.BumpTurn()

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.TurnCount)
	assert.Equal(t, 2, cp.Len())
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
