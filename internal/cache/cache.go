// Package cache stores embeddings so repeated runs do not re-embed unchanged text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/llm"
	"github.com/vijay-prabhu/jobrank/internal/logger"
)

const keyPrefix = "jobrank:emb:"

// Store is a byte-valued key/value store with expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// RedisStore is a Store backed by redis
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to redis and verifies the connection
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Embedder serves embeddings from a Store and fills it on a miss.
// Cache failures are logged and never fail the embedding.
type Embedder struct {
	next  llm.Embedder
	store Store
	model string
	ttl   time.Duration
	log   *zap.Logger
}

// NewEmbedder wraps next with a cache keyed on model and text
func NewEmbedder(next llm.Embedder, store Store, model string, ttl time.Duration, log *zap.Logger) *Embedder {
	return &Embedder{next: next, store: store, model: model, ttl: ttl, log: logger.OrNop(log)}
}

// Embed implements llm.Embedder
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.model, text)

	data, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.Warn("embedding cache read failed", zap.Error(err))
	} else if ok {
		if vec, err := decodeVector(data); err == nil {
			return vec, nil
		}
		e.log.Warn("discarding corrupt cached embedding", zap.String("key", key))
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.store.Set(ctx, key, encodeVector(vec), e.ttl); err != nil {
		e.log.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// Key derives the cache key for a model and text
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
