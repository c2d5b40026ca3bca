package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppSettings holds process-wide settings.
type AppSettings struct {
	Name      string `yaml:"name"`
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSecs    int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs   int    `yaml:"write_timeout_secs"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
}

// OllamaEmbedderConfig configures the Ollama embedder.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Model       string                `yaml:"model"`
	Dimension   int                   `yaml:"dimension"`
	BatchSize   int                   `yaml:"batch_size"`
	Concurrency int                   `yaml:"concurrency"`
	Ollama      *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaLLMConfig configures the local Ollama provider.
type OllamaLLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GeminiLLMConfig configures the hosted Gemini provider.
type GeminiLLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider    string          `yaml:"provider"`
	Temperature float64         `yaml:"temperature"`
	TimeoutSecs int             `yaml:"timeout_secs"`
	Ollama      OllamaLLMConfig `yaml:"ollama"`
	Gemini      GeminiLLMConfig `yaml:"gemini"`
}

// CohereConfig configures the Cohere rerank API.
type CohereConfig struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RerankerConfig toggles second-stage refinement.
type RerankerConfig struct {
	Enabled bool         `yaml:"enabled"`
	Cohere  CohereConfig `yaml:"cohere"`
}

// RetrievalConfig holds the two-tier retrieval widths.
type RetrievalConfig struct {
	RetrievalTopK int `yaml:"retrieval_top_k"`
	RerankTopK    int `yaml:"rerank_top_k"`
}

// S3Config contains connection details for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// UploadsConfig selects where uploaded files are kept until ingested.
type UploadsConfig struct {
	Type string    `yaml:"type"`
	Dir  string    `yaml:"dir"`
	S3   *S3Config `yaml:"s3,omitempty"`
}

// RedisConfig contains connection details for the Redis task store.
type RedisConfig struct {
	URL     string `yaml:"url"`
	TTLSecs int    `yaml:"ttl_secs"`
}

// TasksConfig configures the background worker pool.
type TasksConfig struct {
	Workers     int          `yaml:"workers"`
	QueueSize   int          `yaml:"queue_size"`
	TimeoutSecs int          `yaml:"timeout_secs"`
	MaxRetries  int          `yaml:"max_retries"`
	Store       string       `yaml:"store"`
	Redis       *RedisConfig `yaml:"redis,omitempty"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	App         AppSettings       `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Uploads     UploadsConfig     `yaml:"uploads"`
	Tasks       TasksConfig       `yaml:"tasks"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml, else defaults.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		App:    AppSettings{Name: "RAG Backend Core", LogFormat: "text"},
		Server: ServerConfig{Addr: ":8000", ReadTimeoutSecs: 60, WriteTimeoutSecs: 300, RequestTimeoutSecs: 180, MaxUploadMB: 50},
		Embedder: EmbedderConfig{
			Type:        "ollama",
			Model:       "nomic-embed-text",
			BatchSize:   32,
			Concurrency: 2,
			Ollama:      &OllamaEmbedderConfig{TimeoutSecs: 30},
		},
		Chunker: ChunkerConfig{Type: "recursive", ChunkSize: 1000, ChunkOverlap: 200, SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: &QdrantConfig{URL: "http://qdrant:6333", Collection: "knowledge_base", TimeoutSecs: 15},
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			TimeoutSecs: 120,
			Ollama:      OllamaLLMConfig{BaseURL: "http://ollama:11434", Model: "llama3"},
			Gemini:      GeminiLLMConfig{Model: "gemini-1.5-flash"},
		},
		Reranker:   RerankerConfig{Cohere: CohereConfig{Model: "rerank-v3.5", BaseURL: "https://api.cohere.com", TimeoutSecs: 10}},
		Retrieval:  RetrievalConfig{RetrievalTopK: 10, RerankTopK: 3},
		Uploads:    UploadsConfig{Type: "local", Dir: "app/data/uploads"},
		Tasks:      TasksConfig{Workers: 2, QueueSize: 64, TimeoutSecs: 600, MaxRetries: 3, Store: "memory"},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = 1
	}
	switch cfg.Embedder.Type {
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = cfg.LLM.Ollama.BaseURL
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 30
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" || cfg.Embedder.Model == "nomic-embed-text" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	case "hashing":
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://qdrant:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "knowledge_base"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Tasks.Store == "redis" && cfg.Tasks.Redis == nil {
		cfg.Tasks.Redis = &RedisConfig{URL: "redis://localhost:6379/0"}
	}
	if cfg.Tasks.Redis != nil && cfg.Tasks.Redis.TTLSecs == 0 {
		cfg.Tasks.Redis.TTLSecs = 24 * 60 * 60
	}
	if cfg.Uploads.Type == "local" && cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "app/data/uploads"
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
}

// Validate reports the first invalid setting. Provider credentials are checked later,
// when the provider is constructed.
func (c *AppConfig) Validate() error {
	if c.Retrieval.RetrievalTopK < 1 {
		return fmt.Errorf("retrieval.retrieval_top_k must be >= 1, got %d", c.Retrieval.RetrievalTopK)
	}
	if c.Retrieval.RerankTopK < 1 {
		return fmt.Errorf("retrieval.rerank_top_k must be >= 1, got %d", c.Retrieval.RerankTopK)
	}
	switch c.Chunker.Type {
	case "recursive", "":
		if c.Chunker.ChunkSize <= 0 {
			return fmt.Errorf("chunker.chunk_size must be > 0, got %d", c.Chunker.ChunkSize)
		}
		if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
			return fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
		}
	case "sentence":
		if c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
			return fmt.Errorf("chunker.overlap_sentences must be < sentences_per_chunk")
		}
	default:
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	switch c.Embedder.Type {
	case "hashing", "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.Uploads.Type {
	case "local":
	case "s3":
		if c.Uploads.S3 == nil || c.Uploads.S3.Bucket == "" {
			return errors.New("uploads.s3.bucket is required when uploads.type is s3")
		}
	default:
		return fmt.Errorf("unknown uploads type: %s", c.Uploads.Type)
	}
	switch c.Tasks.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown task store: %s", c.Tasks.Store)
	}
	if c.Tasks.Workers < 1 {
		return fmt.Errorf("tasks.workers must be >= 1, got %d", c.Tasks.Workers)
	}
	return nil
}
