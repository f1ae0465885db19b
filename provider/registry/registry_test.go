package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/8agana/polychat/config"
	"github.com/8agana/polychat/provider"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"XAI_API_KEY", "GROK_API_KEY", "DEEPSEEK_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestFromConfigOllamaAlwaysPresent(t *testing.T) {
	clearKeyEnv(t)

	reg := FromConfig(&config.Config{})
	assert.Equal(t, []string{"ollama"}, reg.List())

	p, err := reg.Get("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestFromConfigKeyBearingBackends(t *testing.T) {
	clearKeyEnv(t)

	cfg := &config.Config{
		OpenAI:    &config.OpenAIConfig{APIKey: "sk-1", DefaultModel: "gpt-4o"},
		Anthropic: &config.AnthropicConfig{APIKey: "sk-2"},
		Grok:      &config.GrokConfig{APIKey: "sk-3"},
		DeepSeek:  &config.DeepSeekConfig{APIKey: "sk-4"},
	}

	reg := FromConfig(cfg)
	assert.Equal(t, []string{"anthropic", "deepseek", "grok", "ollama", "openai"}, reg.List())

	p, err := reg.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.DefaultModel())

	grok, err := reg.Get("grok")
	require.NoError(t, err)
	assert.Equal(t, "grok-2-latest", grok.DefaultModel())
}

func TestFromConfigEnvKeys(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	reg := FromConfig(&config.Config{})
	assert.Equal(t, []string{"ollama", "openai"}, reg.List())
}

func TestGetUnknownProvider(t *testing.T) {
	clearKeyEnv(t)

	_, err := FromConfig(&config.Config{}).Get("nope")
	var cfgErr *provider.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestOllamaModelOverride(t *testing.T) {
	clearKeyEnv(t)

	reg := FromConfig(&config.Config{
		Ollama: &config.OllamaConfig{DefaultModel: "mistral"},
	})
	p, err := reg.Get("ollama")
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.DefaultModel())
}
