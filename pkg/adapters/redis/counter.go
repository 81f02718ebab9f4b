package redis

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// Counter implements ports.Counter with INCR, so runners sharing one Redis
// never generate the same bucket name.
type Counter struct {
	client *backend.Client
	key    string
}

// NewCounter creates a counter stored under key.
func NewCounter(client *backend.Client, key string) *Counter {
	if key == "" {
		key = DefaultPrefix + "ordinal"
	}
	return &Counter{client: client, key: key}
}

// Next increments and returns the counter.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error advancing counter: %w", err)
	}
	return n, nil
}
