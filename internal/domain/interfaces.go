package domain

import "context"

// Document is one unit of extracted text, typically a single PDF page.
type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]any
}

// Chunk is a window of a document's text used for indexing.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Index      int
	Metadata   map[string]any
}

// RetrievedDocument is a stored chunk returned by similarity search or reranking.
type RetrievedDocument struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// Source returns the "source" metadata field or "Unknown".
func (d RetrievedDocument) Source() string {
	if v, ok := d.Metadata["source"].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}

// Answer is the result of the answer pipeline.
type Answer struct {
	Text    string
	Sources []string
}

// IngestResult summarises one ingested file.
type IngestResult struct {
	Source  string
	Pages   int
	Chunks  int
	Summary string
}

// DocumentLoader extracts per-page text from an uploaded file.
type DocumentLoader interface {
	Load(ctx context.Context, data []byte, source string) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Dimension reports 0 until the output size is known.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]RetrievedDocument, error)
}

// Reranker reorders candidates by relevance and returns at most topN of them.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []RetrievedDocument, topN int) ([]RetrievedDocument, error)
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
