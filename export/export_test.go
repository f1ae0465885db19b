package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/8agana/polychat/core"
)

func sampleConversation(t *testing.T) *core.Conversation {
	t.Helper()
	conv := core.NewConversation("demo")
	require.NoError(t, conv.Append(core.UserMessage("what is <html>?")))
	require.NoError(t, conv.Append(core.AssistantToolCalls("", []core.ToolCall{
		{ID: "call_1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)},
	})))
	require.NoError(t, conv.Append(core.ToolResultMessage("call_1", "echo", `{"echo":{"text":"x"}}`)))
	require.NoError(t, conv.Append(core.AssistantMessage("a markup language")))
	return conv
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	conv := sampleConversation(t)

	require.NoError(t, Save(path, conv))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded core.Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, conv.Messages, decoded.Messages)
	assert.Equal(t, "demo", decoded.SessionID)
}

func TestSaveMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	require.NoError(t, Save(path, sampleConversation(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# Session demo")
	assert.Contains(t, text, "## user")
	assert.Contains(t, text, "what is <html>?")
	assert.Contains(t, text, "tool call `echo`")
	assert.Contains(t, text, "a markup language")
}

func TestSaveHTMLEscapesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")

	require.NoError(t, Save(path, sampleConversation(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "what is &lt;html&gt;?")
	assert.NotContains(t, text, "what is <html>?")
	assert.Contains(t, text, "<h1>Session demo</h1>")
}

func TestSaveUnknownExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "out.pdf"), sampleConversation(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".pdf")
}
