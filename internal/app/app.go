// Package app assembles the backend from configuration. Every component is
// constructed once here and injected; nothing is a package-level singleton.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-backend/internal/api"
	"rag-backend/internal/chunker"
	"rag-backend/internal/config"
	"rag-backend/internal/domain"
	"rag-backend/internal/embedding"
	"rag-backend/internal/llm"
	"rag-backend/internal/loader"
	"rag-backend/internal/rerank"
	"rag-backend/internal/retry"
	"rag-backend/internal/service"
	"rag-backend/internal/storage"
	"rag-backend/internal/summarizer"
	"rag-backend/internal/tasks"
	"rag-backend/internal/vectorstore"
)

// App owns the long-lived components and their shutdown order.
type App struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	Service *service.RAGService
	Queue   *tasks.Queue
	Uploads storage.Store
	Server  *api.Server

	redis *redis.Client
}

// NewLogger builds the process logger: text by default, JSON when configured,
// debug level when app.debug is set.
func NewLogger(cfg config.AppSettings, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("app", cfg.Name)
}

// New wires every component named by cfg. Configuration errors such as an
// unsupported provider or a missing credential are returned here, before
// any request is served.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	store, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	gen, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	rr := newReranker(cfg.Reranker, logger)
	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	uploads, err := storage.New(ctx, cfg.Uploads)
	if err != nil {
		return nil, fmt.Errorf("uploads: %w", err)
	}

	svc := service.NewRAGService(service.Deps{
		Loader:     loader.NewPDFLoader(),
		Chunker:    ch,
		Embedder:   emb,
		Store:      store,
		Reranker:   rr,
		Generator:  gen,
		Summarizer: sum,
	}, service.Options{
		RetrievalTopK:       cfg.Retrieval.RetrievalTopK,
		RerankTopK:          cfg.Retrieval.RerankTopK,
		UseReranker:         cfg.Reranker.Enabled,
		BatchSize:           cfg.Embedder.BatchSize,
		Concurrency:         cfg.Embedder.Concurrency,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Retry:               retry.Policy{MaxRetries: uint64(max(cfg.Tasks.MaxRetries, 0)), Base: retry.DefaultPolicy.Base},
		Logger:              logger.With("component", "rag"),
	})

	a := &App{Config: cfg, Logger: logger, Service: svc, Uploads: uploads}
	taskStore, err := a.taskStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Queue = tasks.NewQueue(taskStore, tasks.Options{
		Workers:   cfg.Tasks.Workers,
		QueueSize: cfg.Tasks.QueueSize,
		Timeout:   time.Duration(cfg.Tasks.TimeoutSecs) * time.Second,
		Logger:    logger.With("component", "tasks"),
	})
	a.Queue.Register(tasks.KindProcessDocument, svc.ProcessDocumentHandler(uploads))
	a.Queue.Register(tasks.KindEcho, tasks.Echo)

	a.Server = api.NewServer(svc, a.Queue, uploads, api.Options{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Logger:         logger.With("component", "http"),
	})

	logger.Info("components ready",
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"llm", gen.Name(),
		"reranker", svc.RerankActive(),
		"uploads", cfg.Uploads.Type,
		"task_store", cfg.Tasks.Store,
	)
	return a, nil
}

func (a *App) taskStore(ctx context.Context) (tasks.Store, error) {
	if a.Config.Tasks.Store != "redis" {
		return tasks.NewMemoryStore(), nil
	}
	client, err := tasks.OpenRedis(a.Config.Tasks.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redis = client
	return tasks.NewRedisStore(client, time.Duration(a.Config.Tasks.Redis.TTLSecs)*time.Second), nil
}

// Start launches the task workers.
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
}

// Close drains the task queue and releases connections.
func (a *App) Close() error {
	var errs []error
	if err := a.Queue.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop queue: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// newReranker returns nil when reranking is off. A missing API key disables
// reranking with a warning instead of failing startup.
func newReranker(cfg config.RerankerConfig, logger *slog.Logger) domain.Reranker {
	if !cfg.Enabled {
		return nil
	}
	c, err := rerank.NewCohere(rerank.CohereConfig{
		APIKey:  cfg.Cohere.APIKey,
		Model:   cfg.Cohere.Model,
		BaseURL: cfg.Cohere.BaseURL,
		Timeout: time.Duration(cfg.Cohere.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Warn("reranker disabled", "error", err)
		return nil
	}
	return c
}

func newSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}
