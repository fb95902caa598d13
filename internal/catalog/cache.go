package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultCacheTTL matches the refresh interval of the upstream price feeds.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores catalog snapshots by key.
type Cache interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Set(ctx context.Context, key string, snapshot Snapshot, ttl time.Duration) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (Snapshot, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return Snapshot{}, false, nil
	}
	snapshot, ok := v.(Snapshot)
	return snapshot, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, snapshot Snapshot, ttl time.Duration) error {
	c.store.Set(key, snapshot, ttl)
	return nil
}

// RedisCache shares snapshots between processes through redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing redis client. Keys are namespaced with prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("redis get: %w", err)
	}
	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, snapshot Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// CachedSource serves snapshots of a Source, refetching only after the TTL.
type CachedSource struct {
	source Source
	cache  Cache
	key    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewCachedSource wraps source with cache under key.
func NewCachedSource(logger *zap.Logger, source Source, cache Cache, key string, ttl time.Duration) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		source: source,
		cache:  cache,
		key:    key,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the cached catalog, fetching it when missing or expired.
func (s *CachedSource) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		// A broken cache should not take the catalog down with it.
		s.logger.Warn("catalog cache read failed",
			zap.String("op", "catalog.CachedSource.Snapshot"),
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
	if ok && s.now().Sub(cached.FetchedAt) < s.ttl {
		s.logger.Debug("using cached catalog",
			zap.String("op", "catalog.CachedSource.Snapshot"),
			zap.String("key", s.key),
		)
		return cached, nil
	}

	items, err := s.source.Fetch(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch catalog %s: %w", s.key, err)
	}
	snapshot := Snapshot{Items: items, FetchedAt: s.now()}

	if err := s.cache.Set(ctx, s.key, snapshot, s.ttl); err != nil {
		s.logger.Warn("catalog cache write failed",
			zap.String("op", "catalog.CachedSource.Snapshot"),
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
	return snapshot, nil
}

// NextRefresh reports when the snapshot will be considered stale.
func (s *CachedSource) NextRefresh(snapshot Snapshot) time.Time {
	return snapshot.FetchedAt.Add(s.ttl)
}
