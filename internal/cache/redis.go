// Package cache owns the Redis connection shared by the invitation queue
// producer, its worker and the readiness probe.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the Redis connection pool.
type Options struct {
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultOptions returns pool settings for one API process plus its
// in-process worker.
func DefaultOptions() Options {
	return Options{
		PoolSize:        10,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the server answers.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := clientOptions(redisURL, opts)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx := ctx
	if opts.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func clientOptions(redisURL string, opts Options) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	if opts.MinIdleConns > 0 {
		opt.MinIdleConns = opts.MinIdleConns
	}
	if opts.PoolTimeout > 0 {
		opt.PoolTimeout = opts.PoolTimeout
	}
	if opts.ConnMaxIdleTime > 0 {
		opt.ConnMaxIdleTime = opts.ConnMaxIdleTime
	}

	return opt, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for the stream producer and
// worker.
func (c *Cache) Client() *redis.Client {
	return c.client
}
