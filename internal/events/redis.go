package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes events as JSON on a Redis pub/sub channel
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus connects to Redis and verifies the connection
func NewRedisBus(redisURL, channel string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBusWithClient(client, channel), nil
}

// NewRedisBusWithClient creates a bus from an existing Redis client
func NewRedisBusWithClient(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = "veracity.events"
	}
	return &RedisBus{client: client, channel: channel}
}

// Channel returns the pub/sub channel name
func (b *RedisBus) Channel() string {
	return b.channel
}

// Publish sends the event to the channel
func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the Redis connection
func (b *RedisBus) Close() error {
	return b.client.Close()
}
