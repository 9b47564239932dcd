package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Nil is returned by reads of missing keys.
const Nil = redis.Nil

// Client wraps go-redis client to allow future extensions.
type Client struct {
	*redis.Client
}

// Options tunes the connection pool. Zero values keep go-redis defaults.
type Options struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int, opts ...Options) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	o := &redis.Options{Addr: addr, Password: password, DB: db}
	if len(opts) > 0 {
		o.PoolSize = opts[0].PoolSize
		o.DialTimeout = opts[0].DialTimeout
		o.ReadTimeout = opts[0].ReadTimeout
		o.WriteTimeout = opts[0].WriteTimeout
	}
	c := redis.NewClient(o)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Client{Client: c}, nil
}

// Healthy reports whether the server answers a PING within ctx.
func (c *Client) Healthy(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
