package pool

import (
	"context"
	"errors"
	"time"

	"github.com/pixelatedempathy/connpool/internal/constants"
	"github.com/pixelatedempathy/connpool/pkg/logging"
)

// Config holds configuration for a connection pool.
// A Config is copied at construction and immutable afterwards.
type Config struct {
	// MaxConnections is the hard upper bound on live connections.
	// The pool never holds more than this many, counting in-flight creations.
	// Default: 10
	MaxConnections int

	// MinConnections is the floor the pool maintains: created eagerly at
	// Start and replenished by the sweep after evictions.
	// Default: 2
	MinConnections int

	// IdleTimeout retires connections that sit unused for this long.
	// Default: 5 minutes
	IdleTimeout time.Duration

	// ConnectionTimeout is how long Acquire waits for a connection when
	// the pool is at capacity.
	// Default: 30 seconds
	ConnectionTimeout time.Duration

	// ConnectTimeout bounds a single backend dial, both on the acquire
	// path and during sweep replenishment.
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// HealthCheckInterval is the period of the health-and-replenish sweep.
	// Default: 30 seconds
	HealthCheckInterval time.Duration

	// MaxRetries is how many additional attempts Execute makes after the
	// first failure.
	// Default: 3
	MaxRetries int

	// RetryDelay is the base of the exponential backoff between Execute
	// attempts: the wait before retry n is RetryDelay * 2^(n-1).
	// Default: 500ms
	RetryDelay time.Duration

	// MetricsInterval is the period of stats snapshot emission to the
	// Observer and the debug log.
	// Default: 1 minute
	MetricsInterval time.Duration

	// DisableMetrics turns off periodic stats emission. Snapshots remain
	// available on demand through Stats.
	DisableMetrics bool

	// Observer receives pool lifecycle and statistics events.
	// Optional - if nil, events are not reported.
	Observer Observer

	// Logger receives the pool's structured log output.
	// Optional - if nil, the package-global logger is used.
	Logger *logging.Logger

	// SleepFunc overrides how Execute waits out retry backoff. Tests
	// inject it to observe delays without wall-clock waits.
	// Optional - if nil, a timer-based wait honoring ctx is used.
	SleepFunc func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:      constants.DefaultMaxConnections,
		MinConnections:      constants.DefaultMinConnections,
		IdleTimeout:         constants.DefaultIdleTimeout,
		ConnectionTimeout:   constants.DefaultConnectionTimeout,
		ConnectTimeout:      constants.DefaultConnectTimeout,
		HealthCheckInterval: constants.DefaultHealthCheckInterval,
		MaxRetries:          constants.DefaultMaxRetries,
		RetryDelay:          constants.DefaultRetryDelay,
		MetricsInterval:     constants.DefaultMetricsInterval,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxConnections < 0 {
		return errors.New("pool: MaxConnections cannot be negative")
	}
	if c.MinConnections < 0 {
		return errors.New("pool: MinConnections cannot be negative")
	}
	if c.MaxConnections > 0 && c.MinConnections > c.MaxConnections {
		return errors.New("pool: MinConnections cannot exceed MaxConnections")
	}
	if c.IdleTimeout < 0 {
		return errors.New("pool: IdleTimeout cannot be negative")
	}
	if c.ConnectionTimeout < 0 {
		return errors.New("pool: ConnectionTimeout cannot be negative")
	}
	if c.ConnectTimeout < 0 {
		return errors.New("pool: ConnectTimeout cannot be negative")
	}
	if c.HealthCheckInterval < 0 {
		return errors.New("pool: HealthCheckInterval cannot be negative")
	}
	if c.MaxRetries < 0 {
		return errors.New("pool: MaxRetries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return errors.New("pool: RetryDelay cannot be negative")
	}
	if c.MetricsInterval < 0 {
		return errors.New("pool: MetricsInterval cannot be negative")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.MaxConnections == 0 {
		c.MaxConnections = defaults.MaxConnections
	}
	if c.MinConnections == 0 {
		c.MinConnections = defaults.MinConnections
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = defaults.ConnectionTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = defaults.MetricsInterval
	}
}
