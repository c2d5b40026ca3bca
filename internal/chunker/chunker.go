// Package chunker splits page documents into retrieval chunks.
package chunker

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"rag-backend/internal/config"
	"rag-backend/internal/domain"
)

// chunkNamespace scopes chunk ids so the same page text always maps to the same point id.
var chunkNamespace = uuid.MustParse("3b0c7f5e-8d1a-4f43-9a57-2f1e6c0d9b84")

// New builds the chunker named by cfg.Type.
func New(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case "sentence":
		return NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

// buildChunks attaches ids and metadata. Each chunk inherits the page metadata plus its index.
func buildChunks(document domain.Document, texts []string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		md := make(map[string]any, len(document.Metadata)+1)
		for k, v := range document.Metadata {
			md[k] = v
		}
		md["chunk"] = i
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewSHA1(chunkNamespace, []byte(document.ID+"\x00"+strconv.Itoa(i)+"\x00"+text)).String(),
			DocumentID: document.ID,
			Text:       text,
			Index:      i,
			Metadata:   md,
		})
	}
	return chunks
}
