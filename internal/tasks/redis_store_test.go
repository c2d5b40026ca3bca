package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	s := NewRedisStore(kv, time.Hour)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Put(ctx, Task{ID: "abc", Kind: KindEcho, Status: StatusQueued, CreatedAt: created}))
	assert.Contains(t, kv.data, "rag:task:abc")
	assert.Equal(t, time.Hour, kv.ttl["rag:task:abc"])

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRedisStoreAgainstServer(t *testing.T) {
	url := os.Getenv("RAG_REDIS_TEST_URL")
	if url == "" {
		t.Skip("skipping Redis integration test; set RAG_REDIS_TEST_URL to run")
	}
	client, err := OpenRedis(url)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping Redis integration test; Redis not reachable: %v", err)
	}
	s := NewRedisStore(client, time.Minute)
	q := NewQueue(s, Options{Workers: 1})
	q.Register(KindEcho, Echo)
	q.Start(ctx)
	defer q.Stop()

	id, err := q.Submit(ctx, KindEcho, map[string]string{"name": "Redis"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Redis", waitFor(t, q, id, StatusSucceeded).Result)
}
