// Package cache stores provider responses keyed by a digest of the full
// request, so repeating an identical prompt costs nothing. Only buffered,
// tool-free turns are cacheable; streamed output and tool loops depend on
// state outside the request.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/8agana/polychat/core"
)

// Entry is one cached response.
type Entry struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists entries as <dir>/<key>.json. Misses are not errors.
type Store struct {
	dir string
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "polychat", "responses"), nil
}

// NewStore creates the directory if needed and returns a store rooted at
// it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Get returns the cached entry for key, or ok=false on a miss. A corrupt
// entry is treated as a miss.
func (s *Store) Get(key string) (*Entry, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	return &e, true
}

// Put stores the entry under key. Failures are returned so callers can
// log them, but a failed Put never needs to abort a run.
func (s *Store) Put(key string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), data, 0o644)
}

// Clear removes every cached entry.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, ent.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// RequestKey digests everything that determines a buffered response: the
// provider, model, system prompt, message history and sampling parameters.
// Two requests share a key only if the provider would see identical input.
func RequestKey(providerName, model, system string, messages []core.Message, temperature *float64, maxTokens int64) string {
	payload := struct {
		Provider    string         `json:"provider"`
		Model       string         `json:"model"`
		System      string         `json:"system"`
		Messages    []core.Message `json:"messages"`
		Temperature *float64       `json:"temperature"`
		MaxTokens   int64          `json:"max_tokens"`
	}{providerName, model, system, messages, temperature, maxTokens}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
