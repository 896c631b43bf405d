package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends events to Redis Streams with XADD.
type RedisPublisher struct {
	client redis.Cmdable
	maxLen int64
}

// NewRedisPublisher returns a publisher that trims each stream to roughly
// maxLen entries. maxLen <= 0 disables trimming.
func NewRedisPublisher(client redis.Cmdable, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	eventJSON, err := json.Marshal(newEvent(eventType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisPublisher) Close() error {
	return nil
}
