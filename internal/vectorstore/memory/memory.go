package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"rag-backend/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	ids       map[string]int
	vectors   [][]float32
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{ids: make(map[string]int)} }

// EnsureCollection fixes the dimension on first use and rejects a different one afterwards.
func (s *Storage) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.dimension {
	case 0:
		s.dimension = dimension
	case dimension:
	default:
		return fmt.Errorf("%w: collection has %d, got %d", domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	return nil
}

// Upsert stores chunks with their vectors. A chunk whose ID is already stored is replaced.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return domain.ErrCollectionNotFound
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: collection has %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(v))
		}
	}
	for i, c := range chunks {
		if j, ok := s.ids[c.ID]; ok && c.ID != "" {
			s.chunks[j] = c
			s.vectors[j] = vectors[i]
			continue
		}
		if c.ID != "" {
			s.ids[c.ID] = len(s.chunks)
		}
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search returns up to topK stored chunks ordered by descending cosine similarity.
// An empty store yields no results.
func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	if s.dimension == 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: collection has %d, query has %d", domain.ErrDimensionMismatch, s.dimension, len(vector))
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], vector)
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.RetrievedDocument, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.RetrievedDocument{
			Text:     s.chunks[j].Text,
			Metadata: copyMetadata(s.chunks[j].Metadata),
			Score:    scores[j],
		})
	}
	return results, nil
}

// Len reports the number of stored chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
