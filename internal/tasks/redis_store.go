package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rag:task:"

// kv is the subset of redis.Cmdable the store needs.
type kv interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps task records as JSON values with a TTL, so task state
// survives restarts and is visible to every API replica.
type RedisStore struct {
	client kv
	ttl    time.Duration
}

func NewRedisStore(client kv, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// OpenRedis parses a redis:// URL and returns a client.
func OpenRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) Put(ctx context.Context, task Task) error {
	ba, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+task.ID, ba, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Task, error) {
	ba, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(ba, &t); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}
