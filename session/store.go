package session

import (
	"fmt"

	"github.com/8agana/polychat/core"
)

// Store is the persistence contract for conversation logs. Load never
// fails on a missing session; it returns a fresh empty conversation so a
// first run and a resumed run follow the same code path.
type Store interface {
	// Load returns the conversation for sessionID, creating an empty one
	// when no saved state exists.
	Load(sessionID string) (*core.Conversation, error)

	// Save persists a snapshot of the conversation. The write is atomic:
	// either the previous state or the new state survives, never a blend.
	Save(conv *core.Conversation) error

	// List returns the ids of all persisted sessions in lexical order.
	List() ([]string, error)

	// Delete removes a persisted session. Deleting a session that does
	// not exist is not an error.
	Delete(sessionID string) error

	// ClearAll removes every persisted session.
	ClearAll() error
}

// IOError wraps a filesystem failure with the operation and path that
// caused it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
