package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"taskflow-ai/internal/logging"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache stores vectors by key. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// MemoryCache is an LRU cache with a TTL
type MemoryCache struct {
	lru *expirable.LRU[string, []float32]
}

// NewMemoryCache creates an LRU cache holding at most maxSize vectors
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []float32](maxSize, nil, ttl)}
}

// Get returns a copy of the cached vector
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	vector, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]float32, len(vector))
	copy(out, vector)
	return out, true, nil
}

// Set stores a copy of vector, evicting the least recently used entry when full
func (c *MemoryCache) Set(_ context.Context, key string, vector []float32) error {
	stored := make([]float32, len(vector))
	copy(stored, vector)
	c.lru.Add(key, stored)
	return nil
}

// Len returns the number of cached vectors
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache stores vectors as little-endian float32 blobs
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. Keys are namespaced with prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "taskflow:emb:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get fetches a vector; a missing key is a miss, not an error
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores a vector with the cache TTL
func (c *RedisCache) Set(ctx context.Context, key string, vector []float32) error {
	if err := c.client.Set(ctx, c.prefix+key, encodeVector(vector), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector: %d bytes", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// CachedEmbedder consults a cache before calling the wrapped embedder.
// Cache failures are logged and never fail the embedding.
type CachedEmbedder struct {
	inner  Embedder
	cache  Cache
	logger logging.Logger
}

// NewCachedEmbedder wraps inner with cache
func NewCachedEmbedder(inner Embedder, cache Cache, logger logging.Logger) *CachedEmbedder {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger.WithComponent("embedding_cache")}
}

// CacheKey identifies text under a given model and size
func CacheKey(model string, dimensions int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%d:%s", model, dimensions, hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) key(text string) string {
	return CacheKey(c.inner.Model(), c.inner.Dimensions(), text)
}

// Embed returns the cached vector or computes and stores it
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch serves hits from the cache and embeds the rest in one call
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyText
		}
		if vec, ok := c.lookup(ctx, c.key(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		c.store(ctx, c.key(missing[j]), vec)
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "Embedding cache read failed", "error", err)
		return nil, false
	}
	if ok && len(vec) != c.inner.Dimensions() {
		return nil, false
	}
	return vec, ok
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.logger.WarnContext(ctx, "Embedding cache write failed", "error", err)
	}
}

// Dimensions returns the wrapped embedder's vector size
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Model returns the wrapped embedder's model name
func (c *CachedEmbedder) Model() string { return c.inner.Model() }
