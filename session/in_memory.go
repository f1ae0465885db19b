package session

import (
	"sort"
	"sync"

	"github.com/8agana/polychat/core"
)

// InMemoryStore is a volatile Store implementation holding conversations
// in a process local map. It is safe for concurrent access and best suited
// for tests. Conversations are cloned on the way in and out to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Conversation)}
}

// Load returns a clone of the stored conversation, or a new empty one.
func (s *InMemoryStore) Load(sessionID string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.sessions[sessionID]; ok {
		return conv.Clone(), nil
	}
	return core.NewConversation(sessionID), nil
}

// Save stores a clone of the conversation snapshot.
func (s *InMemoryStore) Save(conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conv.SessionID] = conv.Clone()
	return nil
}

// List returns the stored session ids sorted lexically.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a stored conversation. Unknown ids are a no-op.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ClearAll removes every stored conversation.
func (s *InMemoryStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*core.Conversation)
	return nil
}

var _ Store = (*InMemoryStore)(nil)
