// Package cache provides the response cache for low-temperature agent
// invocations. Entries are keyed by (agent id, normalized input,
// temperature bucket) and served from an in-process LRU first, then an
// optional Redis level. A hit replays a prior response at zero cost.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is the sentinel for a clean cache miss on every level.
var ErrMiss = errors.New("cache miss")

// Entry is one cached agent response. Output stays as raw JSON so the
// entry survives a Redis round trip; callers rebuild the concrete payload
// with types.DecodeOutput.
type Entry struct {
	AgentID   string          `json:"agent_id"`
	Kind      string          `json:"kind"`
	Output    json.RawMessage `json:"output"`
	Quality   float64         `json:"quality"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	HitCount  int             `json:"hit_count"`
}

// ResponseCache is the interface the invocation gateway consumes.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// Key derives the cache key for one invocation. Inputs are normalized via
// JSON encoding (map keys sort deterministically) and the sampling
// temperature is bucketed to tenths, so logically equal requests collide.
func Key(agentID string, input any, temperature float64) string {
	data, _ := json.Marshal(input)
	h := sha256.New()
	h.Write([]byte(agentID))
	h.Write([]byte{0})
	h.Write(data)
	h.Write([]byte{0})
	fmt.Fprintf(h, "%.1f", temperature)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Config bounds the two cache levels.
type Config struct {
	LocalMaxSize int
	LocalTTL     time.Duration
	RedisTTL     time.Duration
	EnableLocal  bool
	EnableRedis  bool
}

// DefaultConfig returns the reference cache settings.
func DefaultConfig() *Config {
	return &Config{
		LocalMaxSize: 1000,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     1 * time.Hour,
		EnableLocal:  true,
		EnableRedis:  true,
	}
}

// MultiLevelCache checks the local LRU first and falls through to Redis.
// Redis hits backfill the local level.
type MultiLevelCache struct {
	local  *LRUCache
	redis  *redis.Client
	config *Config
	logger *zap.Logger
}

// NewMultiLevelCache creates the cache. rdb may be nil when Redis is
// disabled; a nil logger falls back to a no-op logger.
func NewMultiLevelCache(rdb *redis.Client, config *Config, logger *zap.Logger) *MultiLevelCache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var local *LRUCache
	if config.EnableLocal {
		local = NewLRUCache(config.LocalMaxSize, config.LocalTTL)
	}

	return &MultiLevelCache{
		local:  local,
		redis:  rdb,
		config: config,
		logger: logger.With(zap.String("component", "response_cache")),
	}
}

// Get returns the entry for key or ErrMiss.
func (c *MultiLevelCache) Get(ctx context.Context, key string) (*Entry, error) {
	if c.config.EnableLocal && c.local != nil {
		if entry, ok := c.local.Get(key); ok {
			c.logger.Debug("local cache hit", zap.String("key", key))
			return entry, nil
		}
	}

	if c.config.EnableRedis && c.redis != nil {
		data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		if err == nil {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err == nil {
				if c.config.EnableLocal && c.local != nil {
					c.local.Set(key, &entry)
				}
				c.logger.Debug("redis cache hit", zap.String("key", key))
				go c.incrementHitCount(context.Background(), key)
				return &entry, nil
			}
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get error", zap.Error(err))
		}
	}

	return nil, ErrMiss
}

// Set writes the entry to every enabled level.
func (c *MultiLevelCache) Set(ctx context.Context, key string, entry *Entry) error {
	entry.CreatedAt = time.Now()
	entry.ExpiresAt = time.Now().Add(c.config.RedisTTL)

	if c.config.EnableLocal && c.local != nil {
		c.local.Set(key, entry)
	}

	if c.config.EnableRedis && c.redis != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := c.redis.Set(ctx, c.redisKey(key), data, c.config.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis set error", zap.Error(err))
			return err
		}
	}

	c.logger.Debug("cache set", zap.String("key", key))
	return nil
}

// Delete removes the entry from every enabled level.
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	if c.config.EnableLocal && c.local != nil {
		c.local.Delete(key)
	}

	if c.config.EnableRedis && c.redis != nil {
		if err := c.redis.Del(ctx, c.redisKey(key)).Err(); err != nil {
			return err
		}
	}

	return nil
}

func (c *MultiLevelCache) redisKey(key string) string {
	return "undertow:response_cache:" + key
}

// incrementHitCount bumps the stored hit counter without resetting the TTL.
func (c *MultiLevelCache) incrementHitCount(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	script := redis.NewScript(`
		local key = KEYS[1]
		local data = redis.call('GET', key)
		if data then
			local entry = cjson.decode(data)
			entry.hit_count = (entry.hit_count or 0) + 1
			local ttl = redis.call('TTL', key)
			if ttl > 0 then
				redis.call('SET', key, cjson.encode(entry), 'EX', ttl)
			end
		end
		return 1
	`)
	script.Run(ctx, c.redis, []string{c.redisKey(key)})
}
