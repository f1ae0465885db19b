package core

import "fmt"

// Conversation is the ordered, append-only message log for one session.
// Insertion order is the causal order; messages are never edited, reordered
// or removed. All mutation goes through the Append methods so the tool-call
// id invariants hold: a tool message must answer exactly one prior assistant
// ToolCall, and no ToolCall id repeats within the conversation.
type Conversation struct {
	SessionID string    `json:"session_id"`
	TurnCount int       `json:"turn_count"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation for the given session id.
func NewConversation(sessionID string) *Conversation {
	return &Conversation{SessionID: sessionID, Messages: []Message{}}
}

// Append adds a message to the log. It rejects tool messages whose
// ToolCallID does not reference an unanswered prior assistant tool call,
// and assistant messages that reuse an already-seen tool call id.
func (c *Conversation) Append(msg Message) error {
	switch msg.Role {
	case RoleTool:
		if msg.ToolCallID == "" {
			return fmt.Errorf("tool message without tool_call_id")
		}
		if !c.hasOpenCall(msg.ToolCallID) {
			return fmt.Errorf("tool message references unknown or answered call %q", msg.ToolCallID)
		}
	case RoleAssistant:
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && c.hasCall(tc.ID) {
				return fmt.Errorf("duplicate tool call id %q", tc.ID)
			}
		}
	}
	c.Messages = append(c.Messages, msg)
	return nil
}

// BumpTurn records the completion of one provider round trip.
func (c *Conversation) BumpTurn() { c.TurnCount++ }

// Len returns the number of messages in the log.
func (c *Conversation) Len() int { return len(c.Messages) }

// Clone returns a deep copy so callers can stage changes without touching
// the original until the turn commits.
func (c *Conversation) Clone() *Conversation {
	cp := &Conversation{
		SessionID: c.SessionID,
		TurnCount: c.TurnCount,
		Messages:  make([]Message, len(c.Messages)),
	}
	copy(cp.Messages, c.Messages)
	return cp
}

// LastAssistantText returns the content of the most recent assistant
// message, or the empty string when none exists.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i].Content
		}
	}
	return ""
}

func (c *Conversation) hasCall(id string) bool {
	for _, m := range c.Messages {
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == id {
				return true
			}
		}
	}
	return false
}

// hasOpenCall reports whether id was produced by a prior assistant message
// and has not yet been answered by a tool message.
func (c *Conversation) hasOpenCall(id string) bool {
	if !c.hasCall(id) {
		return false
	}
	for _, m := range c.Messages {
		if m.Role == RoleTool && m.ToolCallID == id {
			return false
		}
	}
	return true
}
