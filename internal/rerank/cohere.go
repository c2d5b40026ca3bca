// Package rerank reorders retrieved documents with a hosted cross-encoder.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rag-backend/internal/domain"
)

// CohereConfig configures the Cohere rerank client.
type CohereConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Cohere calls the v2 rerank endpoint.
type Cohere struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewCohere returns a reranker. An empty API key is a credential error.
func NewCohere(cfg CohereConfig) (*Cohere, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: COHERE_API_KEY is not set", domain.ErrMissingCredential)
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-v3.5"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Cohere{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Rerank returns at most topN documents in relevance order. Each returned
// document carries a copy of its metadata with relevance_score added.
func (c *Cohere) Rerank(ctx context.Context, query string, docs []domain.RetrievedDocument, topN int) ([]domain.RetrievedDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: texts, TopN: topN})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("cohere rerank failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cohere rerank response: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, errors.New("cohere rerank returned no results")
	}
	ranked := make([]domain.RetrievedDocument, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("cohere rerank returned index %d for %d documents", r.Index, len(docs))
		}
		d := docs[r.Index]
		md := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			md[k] = v
		}
		md["relevance_score"] = r.RelevanceScore
		ranked = append(ranked, domain.RetrievedDocument{Text: d.Text, Metadata: md, Score: r.RelevanceScore})
		if len(ranked) == topN {
			break
		}
	}
	return ranked, nil
}
