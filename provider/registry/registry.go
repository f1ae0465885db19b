// Package registry wires configured backends into a lookup table of
// provider.Provider values. Which backends exist is decided once, from the
// immutable config: key-bearing backends appear only when a credential
// resolves; Ollama is always present for local development.
package registry

import (
	"fmt"
	"sort"

	"github.com/8agana/polychat/config"
	"github.com/8agana/polychat/provider"
	"github.com/8agana/polychat/provider/anthropic"
	"github.com/8agana/polychat/provider/ollama"
	"github.com/8agana/polychat/provider/openai"
)

// Registry maps registry keys to constructed adapters.
type Registry struct {
	providers map[string]provider.Provider
}

// FromConfig builds the registry for a loaded configuration.
func FromConfig(cfg *config.Config) *Registry {
	providers := make(map[string]provider.Provider)

	if key := cfg.OpenAI.EffectiveAPIKey(); key != "" {
		providers["openai"] = openai.New("openai", func(o *openai.Options) {
			o.APIKey = key
			if cfg.OpenAI != nil {
				if cfg.OpenAI.BaseURL != "" {
					o.BaseURL = cfg.OpenAI.BaseURL
				}
				if cfg.OpenAI.DefaultModel != "" {
					o.Model = cfg.OpenAI.DefaultModel
				}
			}
		})
	}

	if key := cfg.Grok.EffectiveAPIKey(); key != "" {
		providers["grok"] = openai.New("grok", func(o *openai.Options) {
			o.APIKey = key
			o.BaseURL = "https://api.x.ai/v1"
			o.Model = "grok-2-latest"
			if cfg.Grok != nil {
				if cfg.Grok.BaseURL != "" {
					o.BaseURL = cfg.Grok.BaseURL
				}
				if cfg.Grok.DefaultModel != "" {
					o.Model = cfg.Grok.DefaultModel
				}
			}
		})
	}

	if key := cfg.DeepSeek.EffectiveAPIKey(); key != "" {
		providers["deepseek"] = openai.New("deepseek", func(o *openai.Options) {
			o.APIKey = key
			o.BaseURL = "https://api.deepseek.com"
			o.Model = "deepseek-chat"
			if cfg.DeepSeek != nil {
				if cfg.DeepSeek.BaseURL != "" {
					o.BaseURL = cfg.DeepSeek.BaseURL
				}
				if cfg.DeepSeek.DefaultModel != "" {
					o.Model = cfg.DeepSeek.DefaultModel
				}
			}
		})
	}

	if key := cfg.Anthropic.EffectiveAPIKey(); key != "" {
		providers["anthropic"] = anthropic.New(func(o *anthropic.Options) {
			o.APIKey = key
			if cfg.Anthropic != nil {
				if cfg.Anthropic.BaseURL != "" {
					o.BaseURL = cfg.Anthropic.BaseURL
				}
				if cfg.Anthropic.DefaultModel != "" {
					o.Model = cfg.Anthropic.DefaultModel
				}
			}
		})
	}

	providers["ollama"] = ollama.New(func(o *ollama.Options) {
		o.BaseURL = cfg.Ollama.EffectiveBaseURL()
		if cfg.Ollama != nil && cfg.Ollama.DefaultModel != "" {
			o.Model = cfg.Ollama.DefaultModel
		}
	})

	return &Registry{providers: providers}
}

// Get returns the adapter registered under key.
func (r *Registry) Get(key string) (provider.Provider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, &provider.ConfigError{Detail: fmt.Sprintf("unknown provider: %s", key)}
	}
	return p, nil
}

// List returns the registered keys in sorted order.
func (r *Registry) List() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
