package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rag-backend/internal/domain"
	"rag-backend/internal/prompt"
	"rag-backend/internal/retry"
	"rag-backend/internal/textutil"
)

// NoInformationAnswer is returned when retrieval finds nothing; the LLM is not called.
const NoInformationAnswer = "I could not find any relevant information in the uploaded documents to answer this question."

const sourceSnippetRunes = 200

// Deps are the collaborators the service orchestrates. Reranker and Summarizer may be nil.
type Deps struct {
	Loader     domain.DocumentLoader
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Reranker   domain.Reranker
	Generator  domain.Generator
	Summarizer domain.Summarizer
	Prompt     *prompt.Template
}

// Options tune retrieval widths and ingestion batching.
type Options struct {
	RetrievalTopK       int
	RerankTopK          int
	UseReranker         bool
	BatchSize           int
	Concurrency         int
	SummaryMaxSentences int
	Retry               retry.Policy
	Logger              *slog.Logger
}

type RAGService struct {
	Deps
	opts   Options
	logger *slog.Logger
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	if opts.RetrievalTopK <= 0 {
		opts.RetrievalTopK = 10
	}
	if opts.RerankTopK <= 0 {
		opts.RerankTopK = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if deps.Prompt == nil {
		deps.Prompt = prompt.New()
	}
	return &RAGService{Deps: deps, opts: opts, logger: opts.Logger}
}

// RerankActive reports whether answers go through the wide-fetch-then-rerank path.
func (s *RAGService) RerankActive() bool {
	return s.opts.UseReranker && s.Reranker != nil
}

// FetchWidth is the number of candidates requested from the vector store by Ask.
func (s *RAGService) FetchWidth() int {
	if s.RerankActive() {
		return s.opts.RetrievalTopK
	}
	return s.opts.RerankTopK
}

// Ask answers query from the indexed documents.
func (s *RAGService) Ask(ctx context.Context, query string) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}
	docs, err := s.retrieve(ctx, query, s.FetchWidth())
	if err != nil {
		return domain.Answer{}, err
	}
	if len(docs) == 0 {
		s.logger.Info("no documents retrieved", "query_len", len(query))
		return domain.Answer{Text: NoInformationAnswer, Sources: []string{}}, nil
	}
	docs = s.refine(ctx, query, docs)

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	filled, err := s.Prompt.Render(prompt.Data{Context: strings.Join(texts, "\n\n"), Question: query})
	if err != nil {
		return domain.Answer{}, &domain.PipelineError{Stage: "prompt", Err: err}
	}
	completion, err := s.Generator.Generate(ctx, filled)
	if err != nil {
		return domain.Answer{}, &domain.PipelineError{Stage: "generate", Err: domain.Upstream("llm "+s.Generator.Name(), err)}
	}
	return domain.Answer{Text: strings.TrimSpace(completion), Sources: Sources(docs)}, nil
}

// Search returns the nearest chunks for query without generation.
func (s *RAGService) Search(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 3
	}
	return s.retrieve(ctx, query, topK)
}

func (s *RAGService) retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error) {
	vec, err := s.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &domain.PipelineError{Stage: "embed query", Err: domain.Upstream("embedder "+s.Embedder.Name(), err)}
	}
	// A zero vector has no direction; nothing can be similar to it.
	if isZero(vec) {
		s.logger.Debug("query has no indexable terms", "query_len", len(query))
		return nil, nil
	}
	docs, err := s.Store.Search(ctx, vec, k)
	if err != nil {
		return nil, &domain.PipelineError{Stage: "search", Err: domain.Upstream("vector store", err)}
	}
	return docs, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// refine reranks when enabled. Any reranker failure falls back to the first
// rerank_top_k search results in their original order.
func (s *RAGService) refine(ctx context.Context, query string, docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	if !s.RerankActive() {
		return truncate(docs, s.opts.RerankTopK)
	}
	ranked, err := s.Reranker.Rerank(ctx, query, docs, s.opts.RerankTopK)
	if err == nil && len(ranked) == 0 {
		err = errors.New("reranker returned no documents")
	}
	if err != nil {
		s.logger.Warn("rerank failed, using similarity order", "error", err, "candidates", len(docs))
		return truncate(docs, s.opts.RerankTopK)
	}
	return truncate(ranked, s.opts.RerankTopK)
}

func truncate(docs []domain.RetrievedDocument, n int) []domain.RetrievedDocument {
	if len(docs) > n {
		return docs[:n]
	}
	return docs
}

// Sources formats one attribution line per document, in order.
func Sources(docs []domain.RetrievedDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = fmt.Sprintf("%s: %s", d.Source(), textutil.Truncate(d.Text, sourceSnippetRunes))
	}
	return out
}
