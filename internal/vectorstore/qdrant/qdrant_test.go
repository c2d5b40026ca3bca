package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/domain"
)

// fakeQdrant records the collection size and the last upserted points.
type fakeQdrant struct {
	mu     sync.Mutex
	size   int
	points []map[string]any
	calls  []string
	// racer, when set, is the size another writer creates the collection
	// with between our GET and PUT.
	racer int
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/kb":
			if f.size == 0 {
				http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":` + itoa(f.size) + `,"distance":"Cosine"}}}},"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb":
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Cosine", body.Vectors.Distance)
			if f.racer > 0 {
				f.size = f.racer
				http.Error(w, `{"status":{"error":"Wrong input: Collection `+"`kb`"+` already exists!"}}`, http.StatusConflict)
				return
			}
			f.size = body.Vectors.Size
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb/points":
			assert.Equal(t, "true", r.URL.Query().Get("wait"))
			var body struct {
				Points []map[string]any `json:"points"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.points = body.Points
			_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/kb/points/search":
			if f.size == 0 {
				http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":[
				{"id":"1","score":0.91,"payload":{"page_content":"first","metadata":{"source":"a.pdf","page":0}}},
				{"id":"2","score":0.42,"payload":{"page_content":"second","metadata":{}}}
			],"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestStorage(t *testing.T) (*Storage, *fakeQdrant) {
	f := &fakeQdrant{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "kb"}), f
}

func TestEnsureCollectionCreatesOnceThenChecksSize(t *testing.T) {
	s, f := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, 4))
	assert.Equal(t, 4, f.size)
	require.NoError(t, s.EnsureCollection(ctx, 4))
	assert.Equal(t, []string{
		"GET /collections/kb",
		"PUT /collections/kb",
		"GET /collections/kb",
	}, f.calls)

	require.ErrorIs(t, s.EnsureCollection(ctx, 8), domain.ErrDimensionMismatch)
}

func TestEnsureCollectionConflictMeansExists(t *testing.T) {
	s, f := newTestStorage(t)
	f.racer = 4

	require.NoError(t, s.EnsureCollection(context.Background(), 4))
	assert.Equal(t, []string{
		"GET /collections/kb",
		"PUT /collections/kb",
		"GET /collections/kb",
	}, f.calls)
}

func TestEnsureCollectionConflictChecksSize(t *testing.T) {
	s, f := newTestStorage(t)
	f.racer = 8

	require.ErrorIs(t, s.EnsureCollection(context.Background(), 4), domain.ErrDimensionMismatch)
}

func TestUpsertWritesLangChainPayload(t *testing.T) {
	s, f := newTestStorage(t)
	ctx := context.Background()
	chunks := []domain.Chunk{
		{ID: "6f1c2b1e-3c2d-4c55-9d3c-0f2a5b7c9e11", Text: "hello", Metadata: map[string]any{"source": "a.pdf"}},
		{ID: "not-a-uuid", Text: "world"},
	}
	require.NoError(t, s.Upsert(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))
	require.Len(t, f.points, 2)

	assert.Equal(t, "6f1c2b1e-3c2d-4c55-9d3c-0f2a5b7c9e11", f.points[0]["id"])
	payload := f.points[0]["payload"].(map[string]any)
	assert.Equal(t, "hello", payload["page_content"])
	assert.Equal(t, map[string]any{"source": "a.pdf"}, payload["metadata"])

	assert.NotEqual(t, "not-a-uuid", f.points[1]["id"])
	assert.Equal(t, map[string]any{}, f.points[1]["payload"].(map[string]any)["metadata"])
}

func TestSearchMapsPayload(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, 2))

	got, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "a.pdf", got[0].Source())
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
	assert.Equal(t, "Unknown", got[1].Source())
}

func TestSearchMissingCollectionIsEmpty(t *testing.T) {
	s, _ := newTestStorage(t)
	got, err := s.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpstreamFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := NewStorage(Config{URL: srv.URL, Collection: "kb"})
	_, err := s.Search(context.Background(), []float32{1}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
