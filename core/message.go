package core

import "encoding/json"

// Role identifies the author of a message.
type Role string

// Recognized message roles. Tool carries the result of a single tool call
// back to the model.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request emitted by the model to invoke a named
// local capability. Arguments is the raw JSON argument document exactly as
// the provider produced it; it is parsed by the tool, not by the transport.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in a conversation log. Immutable once appended.
//
// Content is empty for assistant messages that only carry tool calls.
// ToolCallID is set only on tool-role messages and references the ToolCall
// of a preceding assistant message.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message carrying final text.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls builds an assistant-role message that requests tool
// execution. Content may be empty.
func AssistantToolCalls(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage builds a tool-role message answering the tool call with
// the given id. Content holds either the tool output or a description of
// its failure.
func ToolResultMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: toolName, ToolCallID: callID}
}
