package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/8agana/polychat/core"
)

func TestStorePutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	key := RequestKey("openai", "gpt-4o-mini", "", []core.Message{core.UserMessage("hi")}, nil, 0)

	_, ok := store.Get(key)
	assert.False(t, ok)

	entry := &Entry{Provider: "openai", Model: "gpt-4o-mini", Text: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(key, entry))

	got, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "openai", got.Provider)
}

func TestStoreClear(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("k1", &Entry{Text: "a"}))
	require.NoError(t, store.Put("k2", &Entry{Text: "b"}))
	require.NoError(t, store.Clear())

	_, ok := store.Get("k1")
	assert.False(t, ok)
	_, ok = store.Get("k2")
	assert.False(t, ok)
}

func TestRequestKeySensitivity(t *testing.T) {
	msgs := []core.Message{core.UserMessage("hi")}
	temp := 0.7

	base := RequestKey("openai", "gpt-4o-mini", "", msgs, nil, 0)

	assert.Equal(t, base, RequestKey("openai", "gpt-4o-mini", "", msgs, nil, 0))
	assert.NotEqual(t, base, RequestKey("anthropic", "gpt-4o-mini", "", msgs, nil, 0))
	assert.NotEqual(t, base, RequestKey("openai", "gpt-4o", "", msgs, nil, 0))
	assert.NotEqual(t, base, RequestKey("openai", "gpt-4o-mini", "be terse", msgs, nil, 0))
	assert.NotEqual(t, base, RequestKey("openai", "gpt-4o-mini", "", msgs, &temp, 0))
	assert.NotEqual(t, base, RequestKey("openai", "gpt-4o-mini", "", msgs, nil, 100))
	assert.NotEqual(t, base, RequestKey("openai", "gpt-4o-mini", "",
		[]core.Message{core.UserMessage("bye")}, nil, 0))
}
