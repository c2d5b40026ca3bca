package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/api"
	"rag-backend/internal/domain"
	"rag-backend/internal/storage"
	"rag-backend/internal/tasks"
)

type stubRAG struct{}

func (stubRAG) Ask(_ context.Context, query string) (domain.Answer, error) {
	if query == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}
	return domain.Answer{Text: "answer to " + query, Sources: []string{"a.pdf: text"}}, nil
}

func (stubRAG) Search(_ context.Context, _ string, topK int) ([]domain.RetrievedDocument, error) {
	out := make([]domain.RetrievedDocument, topK)
	for i := range out {
		out[i] = domain.RetrievedDocument{Text: "hit", Metadata: map[string]any{"source": "a.pdf"}, Score: 0.5}
	}
	return out, nil
}

func newBackend(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploads, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	queue := tasks.NewQueue(tasks.NewMemoryStore(), tasks.Options{Workers: 1, Logger: logger})
	queue.Register(tasks.KindEcho, tasks.Echo)
	queue.Register(tasks.KindProcessDocument, func(_ context.Context, payload map[string]string) (string, error) {
		return "Processed 1 chunks from " + payload["filename"], nil
	})
	queue.Start(context.Background())
	t.Cleanup(func() { _ = queue.Stop() })

	srv := httptest.NewServer(api.NewServer(stubRAG{}, queue, uploads, api.Options{Logger: logger}).Router())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestClientRoundTrips(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	ans, err := c.Ask(ctx, "why")
	require.NoError(t, err)
	assert.Equal(t, "answer to why", ans.Text)
	assert.Equal(t, []string{"a.pdf: text"}, ans.Sources)

	docs, err := c.Search(ctx, "q", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Source())
}

func TestClientAPIError(t *testing.T) {
	c := newBackend(t)
	_, err := c.Ask(context.Background(), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, domain.ErrEmptyQuery.Error(), apiErr.Detail)
}

func TestClientUploadAndWait(t *testing.T) {
	c := newBackend(t)
	path := filepath.Join(t.TempDir(), "manual.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	up, err := c.UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", up.Filename)
	require.NotEmpty(t, up.TaskID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	task, err := c.WaitTask(ctx, up.TaskID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusSucceeded, task.Status)
	assert.Equal(t, "Processed 1 chunks from manual.pdf", task.Result)
}
