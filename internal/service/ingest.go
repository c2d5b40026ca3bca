package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"rag-backend/internal/domain"
	"rag-backend/internal/retry"
)

// Ingest loads, chunks, embeds and stores one uploaded file. Any failure
// fails the whole ingestion.
func (s *RAGService) Ingest(ctx context.Context, source string, data []byte) (domain.IngestResult, error) {
	pages, err := s.Loader.Load(ctx, data, source)
	if err != nil {
		return domain.IngestResult{}, &domain.PipelineError{Stage: "load", Err: err}
	}
	var (
		chunks []domain.Chunk
		full   strings.Builder
	)
	for _, p := range pages {
		cs, err := s.Chunker.Chunk(p)
		if err != nil {
			return domain.IngestResult{}, &domain.PipelineError{Stage: "chunk", Err: err}
		}
		chunks = append(chunks, cs...)
		full.WriteString(p.Content)
		full.WriteString("\n")
	}
	if len(chunks) == 0 {
		return domain.IngestResult{}, &domain.PipelineError{Stage: "chunk", Err: fmt.Errorf("%w: %s produced no chunks", domain.ErrInvalidDocument, source)}
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return domain.IngestResult{}, &domain.PipelineError{Stage: "embed", Err: domain.Upstream("embedder "+s.Embedder.Name(), err)}
	}
	dim := s.Embedder.Dimension()
	if dim <= 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.IngestResult{}, &domain.PipelineError{Stage: "embed", Err: fmt.Errorf("%w: vector %d has %d values, expected %d", domain.ErrDimensionMismatch, i, len(v), dim)}
		}
	}

	err = retry.Do(ctx, s.opts.Retry, s.logger, "ensure collection", func(ctx context.Context) error {
		return s.Store.EnsureCollection(ctx, dim)
	})
	if err != nil {
		return domain.IngestResult{}, &domain.PipelineError{Stage: "ensure collection", Err: wrapStore(err)}
	}
	err = retry.Do(ctx, s.opts.Retry, s.logger, "upsert", func(ctx context.Context) error {
		return s.Store.Upsert(ctx, chunks, vectors)
	})
	if err != nil {
		return domain.IngestResult{}, &domain.PipelineError{Stage: "upsert", Err: wrapStore(err)}
	}

	res := domain.IngestResult{Source: source, Pages: len(pages), Chunks: len(chunks)}
	if s.Summarizer != nil && s.opts.SummaryMaxSentences > 0 {
		summary, err := s.Summarizer.Summarize(full.String(), s.opts.SummaryMaxSentences)
		if err != nil {
			s.logger.Warn("summarize failed", "source", source, "error", err)
		} else {
			res.Summary = summary
		}
	}
	s.logger.Info("document ingested", "source", source, "pages", res.Pages, "chunks", res.Chunks, "dimension", dim)
	return res, nil
}

// Message renders the task result line for an ingestion.
func Message(r domain.IngestResult) string {
	msg := fmt.Sprintf("Processed %d chunks from %s", r.Chunks, r.Source)
	if r.Summary != "" {
		msg += "\nSummary: " + r.Summary
	}
	return msg
}

// embedChunks embeds in batches of BatchSize with at most Concurrency requests in flight.
func (s *RAGService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		start := start // per-iteration copy (go 1.21 loop semantics)
		end := min(start+s.opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Text
			}
			var out [][]float32
			err := retry.Do(gctx, s.opts.Retry, s.logger, "embed batch", func(ctx context.Context) error {
				var err error
				out, err = s.Embedder.EmbedDocuments(ctx, texts)
				return err
			})
			if err != nil {
				return err
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func wrapStore(err error) error {
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return err
	}
	return domain.Upstream("vector store", err)
}
