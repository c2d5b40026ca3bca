// Package client talks to a running backend over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rag-backend/internal/domain"
	"rag-backend/internal/tasks"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// Upload is the backend's answer to a document upload.
type Upload struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

func (c *Client) Ask(ctx context.Context, query string) (domain.Answer, error) {
	var out struct {
		Answer          string   `json:"answer"`
		SourceDocuments []string `json:"source_documents"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/ask", map[string]string{"query": query}, &out); err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: out.Answer, Sources: out.SourceDocuments}, nil
}

func (c *Client) Search(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	req := map[string]any{"query": query}
	if topK > 0 {
		req["top_k"] = topK
	}
	var out struct {
		Results []struct {
			Content         string         `json:"content"`
			Metadata        map[string]any `json:"metadata"`
			SimilarityScore float64        `json:"similarity_score"`
		} `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/search", req, &out); err != nil {
		return nil, err
	}
	docs := make([]domain.RetrievedDocument, len(out.Results))
	for i, r := range out.Results {
		docs[i] = domain.RetrievedDocument{Text: r.Content, Metadata: r.Metadata, Score: r.SimilarityScore}
	}
	return docs, nil
}

// UploadFile sends a local PDF for ingestion.
func (c *Client) UploadFile(ctx context.Context, path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, err
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return Upload{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Upload{}, err
	}
	if err := w.Close(); err != nil {
		return Upload{}, err
	}
	var out Upload
	if err := c.do(ctx, http.MethodPost, "/documents/upload", &body, w.FormDataContentType(), &out); err != nil {
		return Upload{}, err
	}
	return out, nil
}

func (c *Client) Task(ctx context.Context, id string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+id, nil, "", &t)
	return t, err
}

// WaitTask polls a task until it leaves the queued and running states.
func (c *Client) WaitTask(ctx context.Context, id string, every time.Duration) (tasks.Task, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		t, err := c.Task(ctx, id)
		if err != nil {
			return tasks.Task{}, err
		}
		if t.Status == tasks.StatusSucceeded || t.Status == tasks.StatusFailed {
			return t, nil
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	ba, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(ba), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &detail) == nil {
			apiErr.Detail = detail.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
