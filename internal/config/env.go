package config

import (
	"fmt"
	"strconv"
	"strings"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *AppConfig, value string) error
}

func stringVar(set func(cfg *AppConfig, v string)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		set(cfg, v)
		return nil
	}
}

func intVar(key string, set func(cfg *AppConfig, v int)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %q is not an integer", key, v)
		}
		set(cfg, n)
		return nil
	}
}

func boolVar(key string, set func(cfg *AppConfig, v bool)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %q is not a boolean", key, v)
		}
		set(cfg, b)
		return nil
	}
}

func qdrant(cfg *AppConfig) *QdrantConfig {
	if cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	return cfg.VectorStore.Qdrant
}

var envBindings = []envBinding{
	{"APP_NAME", stringVar(func(c *AppConfig, v string) { c.App.Name = v })},
	{"DEBUG", boolVar("DEBUG", func(c *AppConfig, v bool) { c.App.Debug = v })},
	{"LOG_FORMAT", stringVar(func(c *AppConfig, v string) { c.App.LogFormat = v })},
	{"HTTP_ADDR", stringVar(func(c *AppConfig, v string) { c.Server.Addr = v })},
	{"QDRANT_URL", stringVar(func(c *AppConfig, v string) { qdrant(c).URL = v })},
	{"QDRANT_API_KEY", stringVar(func(c *AppConfig, v string) { qdrant(c).APIKey = v })},
	{"QDRANT_COLLECTION", stringVar(func(c *AppConfig, v string) { qdrant(c).Collection = v })},
	{"VECTOR_STORE", stringVar(func(c *AppConfig, v string) { c.VectorStore.Type = v })},
	{"EMBEDDER_TYPE", stringVar(func(c *AppConfig, v string) { c.Embedder.Type = v })},
	{"EMBEDDING_MODEL", stringVar(func(c *AppConfig, v string) { c.Embedder.Model = v })},
	{"EMBEDDING_DIMENSION", intVar("EMBEDDING_DIMENSION", func(c *AppConfig, v int) { c.Embedder.Dimension = v })},
	{"LLM_PROVIDER", stringVar(func(c *AppConfig, v string) { c.LLM.Provider = v })},
	{"OLLAMA_BASE_URL", stringVar(func(c *AppConfig, v string) { c.LLM.Ollama.BaseURL = v })},
	{"OLLAMA_MODEL", stringVar(func(c *AppConfig, v string) { c.LLM.Ollama.Model = v })},
	{"GOOGLE_API_KEY", stringVar(func(c *AppConfig, v string) { c.LLM.Gemini.APIKey = v })},
	{"GEMINI_MODEL", stringVar(func(c *AppConfig, v string) { c.LLM.Gemini.Model = v })},
	{"USE_RERANKER", boolVar("USE_RERANKER", func(c *AppConfig, v bool) { c.Reranker.Enabled = v })},
	{"COHERE_API_KEY", stringVar(func(c *AppConfig, v string) { c.Reranker.Cohere.APIKey = v })},
	{"RERANK_TOP_K", intVar("RERANK_TOP_K", func(c *AppConfig, v int) { c.Retrieval.RerankTopK = v })},
	{"RETRIEVAL_TOP_K", intVar("RETRIEVAL_TOP_K", func(c *AppConfig, v int) { c.Retrieval.RetrievalTopK = v })},
	{"CHUNK_SIZE", intVar("CHUNK_SIZE", func(c *AppConfig, v int) { c.Chunker.ChunkSize = v })},
	{"CHUNK_OVERLAP", intVar("CHUNK_OVERLAP", func(c *AppConfig, v int) { c.Chunker.ChunkOverlap = v })},
	{"UPLOAD_DIR", stringVar(func(c *AppConfig, v string) { c.Uploads.Dir = v })},
	{"TASK_WORKERS", intVar("TASK_WORKERS", func(c *AppConfig, v int) { c.Tasks.Workers = v })},
	{"REDIS_URL", stringVar(func(c *AppConfig, v string) {
		c.Tasks.Store = "redis"
		if c.Tasks.Redis == nil {
			c.Tasks.Redis = &RedisConfig{}
		}
		c.Tasks.Redis.URL = v
	})},
}

// applyEnv overlays environment variables on cfg. Empty values are ignored.
func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return err
		}
	}
	return nil
}
