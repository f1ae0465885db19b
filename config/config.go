// Package config loads the process configuration from a TOML file once, at
// startup, into an immutable value that is passed explicitly into provider
// and engine construction. Credentials omitted from the file fall back to
// conventional environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface. Nil sections mean the backend
// is configured from environment defaults only.
type Config struct {
	OpenAI    *OpenAIConfig    `toml:"openai"`
	Ollama    *OllamaConfig    `toml:"ollama"`
	Anthropic *AnthropicConfig `toml:"anthropic"`
	Grok      *GrokConfig      `toml:"grok"`
	DeepSeek  *DeepSeekConfig  `toml:"deepseek"`
	Pricing   *PricingConfig   `toml:"pricing"`
	Caching   *CachingConfig   `toml:"caching"`
	Fallback  *FallbackConfig  `toml:"fallback"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

// GrokConfig configures the xAI backend (OpenAI-compatible).
type GrokConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

// DeepSeekConfig configures the DeepSeek backend (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

// PricingConfig maps "provider" or "provider:model" keys to USD per 1K
// tokens, used for optional cost estimates.
type PricingConfig struct {
	InputUSDPer1K  map[string]float64 `toml:"input_usd_per_1k"`
	OutputUSDPer1K map[string]float64 `toml:"output_usd_per_1k"`
}

// CachingConfig toggles the response cache.
type CachingConfig struct {
	Enabled *bool `toml:"enabled"`
}

// FallbackConfig is an ordered list of providers tried when the primary
// buffered request fails.
type FallbackConfig struct {
	Providers []string `toml:"providers"`
}

// Load reads the config at path, or the default path when path is empty.
// A missing default file yields the zero config; a missing explicit path
// is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		def, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(def); statErr != nil {
			return &Config{}, nil
		}
		path = def
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading config at %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultPath returns <user config dir>/polychat/config.toml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve config dir: %w", err)
	}
	return filepath.Join(base, "polychat", "config.toml"), nil
}

// TemplatesDir returns <user config dir>/polychat/templates.
func TemplatesDir() (string, error) {
	path, err := DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "templates"), nil
}

// CachingEnabled reports whether the response cache is on. On by default.
func (c *Config) CachingEnabled() bool {
	if c.Caching == nil || c.Caching.Enabled == nil {
		return true
	}
	return *c.Caching.Enabled
}

// EffectiveAPIKey resolves the OpenAI key, falling back to OPENAI_API_KEY.
func (c *OpenAIConfig) EffectiveAPIKey() string {
	if c != nil && c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// EffectiveAPIKey resolves the Anthropic key, falling back to
// ANTHROPIC_API_KEY.
func (c *AnthropicConfig) EffectiveAPIKey() string {
	if c != nil && c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// EffectiveAPIKey resolves the xAI key, falling back to XAI_API_KEY then
// GROK_API_KEY.
func (c *GrokConfig) EffectiveAPIKey() string {
	if c != nil && c.APIKey != "" {
		return c.APIKey
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GROK_API_KEY")
}

// EffectiveAPIKey resolves the DeepSeek key, falling back to
// DEEPSEEK_API_KEY.
func (c *DeepSeekConfig) EffectiveAPIKey() string {
	if c != nil && c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("DEEPSEEK_API_KEY")
}

// EffectiveBaseURL resolves the Ollama server address.
func (c *OllamaConfig) EffectiveBaseURL() string {
	if c != nil && c.BaseURL != "" {
		return c.BaseURL
	}
	return "http://localhost:11434"
}

const exampleConfig = `# polychat config (TOML)

[openai]
# api_key can be omitted to use env var OPENAI_API_KEY
api_key = ""
base_url = "https://api.openai.com/v1"
default_model = "gpt-4o-mini"

[ollama]
base_url = "http://localhost:11434"
default_model = "llama3.1"

[anthropic]
# api_key can be omitted to use env var ANTHROPIC_API_KEY
api_key = ""
default_model = "claude-3-5-sonnet-latest"

[grok]
# api_key can be omitted to use env var XAI_API_KEY or GROK_API_KEY
api_key = ""
base_url = "https://api.x.ai/v1"
default_model = "grok-2-latest"

[deepseek]
# api_key can be omitted to use env var DEEPSEEK_API_KEY
api_key = ""
base_url = "https://api.deepseek.com"
default_model = "deepseek-chat"

[pricing]
# Keys are "provider" or "provider:model". Values are USD per 1K tokens.
input_usd_per_1k = { openai = 0.005, anthropic = 0.008 }
output_usd_per_1k = { openai = 0.015, anthropic = 0.024 }

[caching]
enabled = true

[fallback]
# providers = ["ollama"]
`

const starterTemplate = "Summarize {{.topic}} in 5 bullet points focusing on actionable insights.\n"

// WriteExampleIfAbsent writes an example config (and a starter template)
// unless a config already exists, returning the config path.
func WriteExampleIfAbsent() (string, error) {
	path, err := DefaultPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return "", err
	}
	tdir := filepath.Join(filepath.Dir(path), "templates")
	if err := os.MkdirAll(tdir, 0o755); err == nil {
		_ = os.WriteFile(filepath.Join(tdir, "summarize.tmpl"), []byte(starterTemplate), 0o644)
	}
	return path, nil
}
