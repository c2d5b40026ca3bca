package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"rag-backend/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// Points carry the {page_content, metadata} payload used by LangChain's
// Qdrant integration so collections stay readable from both sides.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// statusError is returned for non-2xx responses.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.path, e.code, e.body)
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection returns the collection name this client writes to.
func (s *Storage) Collection() string { return s.collection }

// EnsureCollection creates the collection with cosine distance if it is missing.
// An existing collection with a different vector size is a configuration error.
// Losing a create race to another writer (409) counts as existing.
func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	size, err := s.vectorSize(ctx)
	if isNotFound(err) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionPath(), body, nil)
		if !isConflict(err) {
			return err
		}
		size, err = s.vectorSize(ctx)
	}
	if err != nil {
		return err
	}
	if size != dimension {
		return fmt.Errorf("%w: collection %s has size %d, embedder produces %d",
			domain.ErrDimensionMismatch, s.collection, size, dimension)
	}
	return nil
}

func (s *Storage) vectorSize(ctx context.Context) (int, error) {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionPath(), nil, &info); err != nil {
		return 0, err
	}
	var vectors struct {
		Size int `json:"size"`
	}
	if len(info.Result.Config.Params.Vectors) > 0 {
		if err := json.Unmarshal(info.Result.Config.Params.Vectors, &vectors); err != nil {
			return 0, fmt.Errorf("decode collection %s vectors config: %w", s.collection, err)
		}
	}
	return vectors.Size, nil
}

// Upsert writes the chunks as points, waiting for the write to be applied.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		id := chunks[i].ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		metadata := chunks[i].Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		points[i] = map[string]any{
			"id":     id,
			"vector": vectors[i],
			"payload": map[string]any{
				"page_content": chunks[i].Text,
				"metadata":     metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", body, nil)
}

// Search returns the nearest points by cosine similarity. A collection that
// does not exist yet holds nothing, so it yields no results.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedDocument, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				PageContent string         `json:"page_content"`
				Metadata    map[string]any `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/search", req, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.RetrievedDocument, 0, len(resp.Result))
	for _, r := range resp.Result {
		md := r.Payload.Metadata
		if md == nil {
			md = map[string]any{}
		}
		results = append(results, domain.RetrievedDocument{Text: r.Payload.PageContent, Metadata: md, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) collectionPath() string {
	return "/collections/" + url.PathEscape(s.collection)
}

func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func isConflict(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusConflict
}
