// Package vectorstore selects a vector store implementation from configuration.
package vectorstore

import (
	"errors"
	"fmt"
	"time"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
	"rag-backend/internal/vectorstore/memory"
	"rag-backend/internal/vectorstore/qdrant"
)

// New builds the store named by cfg.Type.
func New(cfg config.VectorStoreConfig) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil || cfg.Qdrant.URL == "" {
			return nil, errors.New("vector_store.qdrant.url is required")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
