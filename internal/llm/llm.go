// Package llm maps the configured provider name to a text generator.
package llm

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
)

// Factory builds a generator from configuration.
type Factory func(cfg config.LLMConfig) (domain.Generator, error)

var factories = map[string]Factory{
	"ollama": newOllamaFromConfig,
	"gemini": newGeminiFromConfig,
}

// New returns the generator for cfg.Provider. The name is matched
// case-insensitively; unknown names fail with ErrUnsupportedProvider.
func New(cfg config.LLMConfig) (domain.Generator, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
	return f(cfg)
}

// Providers lists the supported provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func timeout(cfg config.LLMConfig) time.Duration {
	if cfg.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.TimeoutSecs) * time.Second
}

func newOllamaFromConfig(cfg config.LLMConfig) (domain.Generator, error) {
	return NewOllama(OllamaConfig{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.Model,
		Temperature: cfg.Temperature,
		Timeout:     timeout(cfg),
	}), nil
}

func newGeminiFromConfig(cfg config.LLMConfig) (domain.Generator, error) {
	g, err := NewGemini(GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Temperature: cfg.Temperature,
		Timeout:     timeout(cfg),
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
