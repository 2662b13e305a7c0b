package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher appends JSON encoded events to a Redis list.
type RedisDispatcher struct {
	client *redis.Client
	key    string
}

// NewRedisDispatcher creates a dispatcher pushing to key; it fails when
// the server cannot be reached.
func NewRedisDispatcher(ctx context.Context, options *redis.Options, key string) (*RedisDispatcher, error) {
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if key == "" {
		key = "fluxbpm:events"
	}
	return &RedisDispatcher{client: client, key: key}, nil
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return d.client.RPush(ctx, d.key, data).Err()
}

// Key returns the list key events are pushed to.
func (d *RedisDispatcher) Key() string {
	return d.key
}

func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
