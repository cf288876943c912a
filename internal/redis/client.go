package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Keys shared with the email delivery worker, which is a separate service.
const (
	EmailOutboxKey     = "portal:outbox:email"
	EmailOutboxChannel = "portal:outbox:email:ready"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
