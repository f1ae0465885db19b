package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/8agana/polychat/core"
)

// FileStore persists each session as <dir>/<id>.json. Saves go through a
// temporary file in the same directory followed by a rename, so readers
// never observe a partially written session. Safe for use from a single
// process; there is no cross-process locking.
type FileStore struct {
	dir string
}

// DefaultDir returns the per-user session directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", &IOError{Op: "locate", Path: "user config dir", Err: err}
	}
	return filepath.Join(base, "polychat", "sessions"), nil
}

// NewFileStore creates the directory if needed and returns a store rooted
// at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "create", Path: dir, Err: err}
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store persists into.
func (s *FileStore) Dir() string { return s.dir }

// Load reads the session file, or returns a new empty conversation when
// none exists.
func (s *FileStore) Load(sessionID string) (*core.Conversation, error) {
	path := s.path(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.NewConversation(sessionID), nil
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	var conv core.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, &IOError{Op: "decode", Path: path, Err: err}
	}
	if conv.Messages == nil {
		conv.Messages = []core.Message{}
	}
	return &conv, nil
}

// Save writes the conversation atomically via a temp file and rename.
func (s *FileStore) Save(conv *core.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: s.path(conv.SessionID), Err: err}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, conv.SessionID+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: s.dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "close", Path: tmpName, Err: err}
	}

	final := s.path(conv.SessionID)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "rename", Path: final, Err: err}
	}
	return nil
}

// List returns the persisted session ids sorted lexically.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &IOError{Op: "list", Path: s.dir, Err: err}
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the session file if present.
func (s *FileStore) Delete(sessionID string) error {
	path := s.path(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// ClearAll removes every persisted session.
func (s *FileStore) ClearAll() error {
	ids, err := s.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

var _ Store = (*FileStore)(nil)
