// Package cache is the shared response cache: Redis when reachable, an
// in-process fallback otherwise. Both paths store JSON bytes so a value
// round-trips identically regardless of which backend served it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "canvas"

// Cache wraps Redis with a degraded in-memory mode. The mode is decided
// once at startup; a Redis outage later surfaces as cache misses, not
// errors.
type Cache struct {
	rdb        *redis.Client
	defaultTTL time.Duration

	mu       sync.RWMutex
	fallback map[string][]byte
}

// New connects to Redis at redisURL. If the connection fails the cache
// degrades to the in-memory fallback and the service keeps working.
func New(ctx context.Context, redisURL string, defaultTTL time.Duration) *Cache {
	c := &Cache{
		defaultTTL: defaultTTL,
		fallback:   make(map[string][]byte),
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Str("url", redisURL).Msg("invalid redis URL, using in-memory cache")
		return c
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, using in-memory cache")
		rdb.Close()
		return c
	}

	log.Info().Msg("redis cache connected")
	c.rdb = rdb
	return c
}

// Connected reports whether the Redis backend is in use.
func (c *Cache) Connected() bool { return c.rdb != nil }

// Get returns the decoded value for key, or false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	var v interface{}
	ok, err := c.GetInto(ctx, key, &v)
	if err != nil || !ok {
		return nil, false
	}
	return v, true
}

// GetInto decodes the cached value for key into dest. Returns false on
// a miss; an error only for a present-but-undecodable value.
func (c *Cache) GetInto(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw []byte
	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
			return false, nil
		}
		raw = b
	} else {
		c.mu.RLock()
		b, ok := c.fallback[key]
		c.mu.RUnlock()
		if !ok {
			return false, nil
		}
		raw = b
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. A zero ttl uses the cache default. The
// in-memory fallback ignores ttl and holds entries until restart.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
		return nil
	}

	c.mu.Lock()
	c.fallback[key] = raw
	c.mu.Unlock()
	return nil
}

// Delete removes a single key. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.rdb != nil {
		return c.rdb.Del(ctx, key).Err()
	}
	c.mu.Lock()
	delete(c.fallback, key)
	c.mu.Unlock()
	return nil
}

// ClearMatching removes all keys matching a glob pattern and returns
// the number removed.
func (c *Cache) ClearMatching(ctx context.Context, pattern string) (int, error) {
	if c.rdb != nil {
		var removed int
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return removed, err
			}
			removed++
		}
		return removed, iter.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	for k := range c.fallback {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.fallback, k)
			removed++
		}
	}
	return removed, nil
}

// Close releases the Redis connection if one is held.
func (c *Cache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Key joins parts into a namespaced cache key: canvas:<p1>:<p2>:...
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// HashParams produces a short stable digest of a parameter map. Keys are
// sorted before encoding so logically equal maps hash identically.
func HashParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v, _ := json.Marshal(params[k])
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(v)
		sb.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:10]
}
