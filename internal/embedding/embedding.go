// Package embedding selects an Embedder implementation from configuration.
package embedding

import (
	"fmt"
	"time"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
	"rag-backend/internal/embedding/hashing"
	"rag-backend/internal/embedding/ollama"
	"rag-backend/internal/embedding/openai"
)

// New builds the embedder named by cfg.Type.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "ollama":
		oc := config.OllamaEmbedderConfig{}
		if cfg.Ollama != nil {
			oc = *cfg.Ollama
		}
		c, err := ollama.NewClient(ollama.Config{
			BaseURL: oc.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		oc := config.OpenAIEmbedderConfig{}
		if cfg.OpenAI != nil {
			oc = *cfg.OpenAI
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMissingCredential, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
