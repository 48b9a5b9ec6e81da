package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// MemoryCache is an in-process OfferCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	offers  []domain.Offer
	expires time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns a copy of the cached offers; expired entries are evicted.
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.Offer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]domain.Offer(nil), e.offers...), true, nil
}

// Set stores a copy of offers for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, offers []domain.Offer, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		offers:  append([]domain.Offer(nil), offers...),
		expires: c.now().Add(ttl),
	}
	return nil
}

// RedisCache shares offer pools between planner instances.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps a redis client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// NewRedisCacheFromURL parses a redis:// URL and pings the server.
func NewRedisCacheFromURL(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("marketplace.NewRedisCacheFromURL: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("marketplace.NewRedisCacheFromURL: ping: %w", err)
	}
	return NewRedisCache(rdb), nil
}

// Get reads and decodes the cached pool. A missing key is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.Offer, bool, error) {
	data, err := c.rdb.Get(ctx, offersKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("marketplace.RedisCache.Get: %w", err)
	}
	var offers []domain.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		return nil, false, fmt.Errorf("marketplace.RedisCache.Get: decode: %w", err)
	}
	return offers, true, nil
}

// Set encodes offers and stores them with ttl.
func (c *RedisCache) Set(ctx context.Context, key string, offers []domain.Offer, ttl time.Duration) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("marketplace.RedisCache.Set: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, offersKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("marketplace.RedisCache.Set: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func offersKey(key string) string { return "cardplanner:offers:" + key }
