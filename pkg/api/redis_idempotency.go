package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore provides shared idempotency enforcement backed by
// Redis, so replays are detected across replicas and process restarts.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store.
func NewRedisIdempotencyStore(addr, password string, db int, ttl time.Duration) *RedisIdempotencyStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisIdempotencyStore{client: rdb, ttl: ttl}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Check returns a cached response if the idempotency key was seen before.
// Redis errors are treated as cache misses.
func (s *RedisIdempotencyStore) Check(key string) (*CachedResponse, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

// Set stores an idempotency key and its response. Failures are logged but do
// not fail the request; idempotency is best-effort enrichment.
func (s *RedisIdempotencyStore) Set(key string, statusCode int, headers http.Header, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(&CachedResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		CachedAt:   time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("idempotency: marshal cached response", "key", key, "error", err)
		return
	}

	if err := s.client.Set(ctx, idempotencyKey(key), data, s.ttl).Err(); err != nil {
		slog.Warn("idempotency: failed to set key", "key", key, "error", err)
	}
}

// Close releases the Redis connection.
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
