package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; each instance holds a Redis client, a key
// prefix and an optional TTL (pass 0 for keys that should not expire). Writes
// are versioned so an older projection never replaces a newer one.
type ViewCache[T any] struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client goredis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *ViewCache[T]) key(id string) string {
	return c.prefix + id
}

func (c *ViewCache[T]) versionKey(id string) string {
	return c.prefix + id + ":version"
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("view cache read failed", zap.String("key", c.key(id)), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache entry is corrupt", zap.String("key", c.key(id)), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// setIfNewerScript stores a value together with its version unless the
// cached version is already newer. KEYS: value, version. ARGV: payload,
// version, ttl in milliseconds (0 keeps the keys forever).
var setIfNewerScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// SetIfNewer stores value under id unless the entry already cached carries a
// higher version. It reports whether value was written. Failures are logged
// and returned so the caller can drop the entry instead.
func (c *ViewCache[T]) SetIfNewer(ctx context.Context, id string, value *T, version int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("view cache marshal failed", zap.String("key", c.key(id)), zap.Error(err))
		return false, err
	}
	keys := []string{c.key(id), c.versionKey(id)}
	stored, err := setIfNewerScript.Run(ctx, c.client, keys, data, version, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("view cache write failed", zap.String("key", c.key(id)), zap.Error(err))
		return false, err
	}
	return stored == 1, nil
}

// Delete removes the entries for ids in one round trip.
func (c *ViewCache[T]) Delete(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id), c.versionKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("view cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
