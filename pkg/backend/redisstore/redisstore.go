// Package redisstore adapts a Redis server to the backend.Client contract.
// Each pooled connection owns a dedicated redis.Client pinned to a single
// socket, so the caller-facing pool decides concurrency, not the driver.
package redisstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
)

// Config holds connection settings for a Redis backend.
type Config struct {
	// Addr is the host:port of the Redis server.
	// Default: 127.0.0.1:6379
	Addr string

	// Username and Password authenticate against Redis ACLs.
	// Empty values skip AUTH.
	Username string
	Password string

	// DB selects the logical database.
	// Default: 0
	DB int

	// DialTimeout bounds the initial TCP connect plus handshake.
	// Default: 5 seconds
	DialTimeout time.Duration

	// ReadTimeout and WriteTimeout bound individual commands.
	// Default: 3 seconds each
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PingTimeout bounds the liveness probe issued by IsHealthy.
	// Default: 1 second
	PingTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PingTimeout:  time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("redisstore: Addr cannot be empty")
	}
	if c.DB < 0 {
		return errors.New("redisstore: DB cannot be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("redisstore: DialTimeout cannot be negative")
	}
	if c.ReadTimeout < 0 {
		return errors.New("redisstore: ReadTimeout cannot be negative")
	}
	if c.WriteTimeout < 0 {
		return errors.New("redisstore: WriteTimeout cannot be negative")
	}
	if c.PingTimeout < 0 {
		return errors.New("redisstore: PingTimeout cannot be negative")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = defaults.PingTimeout
	}
}

// Client is a backend.Client backed by one redis.Client.
type Client struct {
	cfg Config

	mu  sync.Mutex
	rdb *redis.Client
}

var _ backend.Client = (*Client)(nil)

// NewClient creates an unconnected client. Connect must be called before use.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg}
}

// Factory returns a backend.Factory producing clients for the given config.
// The config is validated once here rather than on every creation.
func Factory(cfg Config) (backend.Factory, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (backend.Client, error) {
		return NewClient(cfg), nil
	}, nil
}

// Connect dials Redis and verifies the connection with a PING.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb != nil {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.cfg.Addr,
		Username:     c.cfg.Username,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
		// One socket per pooled client; pooling happens a layer above.
		PoolSize:     1,
		MinIdleConns: 0,
		MaxRetries:   0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return err
	}

	c.rdb = rdb
	return nil
}

// Disconnect closes the underlying client. Safe to call repeatedly.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Close()
	c.rdb = nil
	return err
}

// IsHealthy pings the server within the configured probe timeout.
func (c *Client) IsHealthy(ctx context.Context) bool {
	rdb := c.redis()
	if rdb == nil {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.PingTimeout)
	defer cancel()

	return rdb.Ping(pingCtx).Err() == nil
}

// Redis exposes the underlying client for operations. It returns an error
// instead of a nil pointer when the client is not connected, so operation
// callbacks fail cleanly into the pool's retry path.
func (c *Client) Redis() (*redis.Client, error) {
	rdb := c.redis()
	if rdb == nil {
		return nil, cperrors.ErrNotConnected
	}
	return rdb, nil
}

// Addr reports the configured server address.
func (c *Client) Addr() string {
	return c.cfg.Addr
}

func (c *Client) redis() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdb
}
