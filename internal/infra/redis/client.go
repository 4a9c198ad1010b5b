// Package redis provides the Redis client and caches built on it.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/connecthub/api/internal/config"
	"github.com/connecthub/api/pkg/logger"
)

// ErrCacheMiss is returned when a key is not in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Client wraps redis.Client.
type Client struct {
	client *redis.Client
	logger *logger.Logger
}

// New creates a Redis client and verifies the connection.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected", "addr", cfg.Addr(), "pool_size", cfg.PoolSize)

	return &Client{client: client, logger: log}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is available.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying redis.Client.
func (c *Client) Client() *redis.Client {
	return c.client
}
