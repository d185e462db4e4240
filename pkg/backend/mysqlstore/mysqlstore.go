// Package mysqlstore adapts a MySQL server to the backend.Client contract.
// Each pooled connection owns a dedicated sql.DB capped at one open
// connection, so the caller-facing pool decides concurrency, not database/sql.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
)

// Config holds connection settings for a MySQL backend.
type Config struct {
	// Addr is the host:port of the MySQL server.
	// Default: 127.0.0.1:3306
	Addr string

	// User and Password authenticate the session.
	User     string
	Password string

	// Database is the schema selected on connect.
	Database string

	// DialTimeout bounds the TCP connect plus handshake.
	// Default: 5 seconds
	DialTimeout time.Duration

	// ReadTimeout and WriteTimeout bound I/O on the session.
	// Default: 3 seconds each
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PingTimeout bounds the liveness probe issued by IsHealthy.
	// Default: 1 second
	PingTimeout time.Duration

	// Params are extra DSN parameters (e.g. charset, parseTime).
	Params map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:3306",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PingTimeout:  time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("mysqlstore: Addr cannot be empty")
	}
	if c.User == "" {
		return errors.New("mysqlstore: User cannot be empty")
	}
	if c.DialTimeout < 0 {
		return errors.New("mysqlstore: DialTimeout cannot be negative")
	}
	if c.ReadTimeout < 0 {
		return errors.New("mysqlstore: ReadTimeout cannot be negative")
	}
	if c.WriteTimeout < 0 {
		return errors.New("mysqlstore: WriteTimeout cannot be negative")
	}
	if c.PingTimeout < 0 {
		return errors.New("mysqlstore: PingTimeout cannot be negative")
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

// DSN renders the config as a driver DSN via mysql.Config, so quoting and
// parameter encoding follow the driver's rules.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Addr
	mc.DBName = c.Database
	mc.Timeout = c.DialTimeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout
	for k, v := range c.Params {
		if mc.Params == nil {
			mc.Params = make(map[string]string, len(c.Params))
		}
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// Client is a backend.Client backed by one single-connection sql.DB.
type Client struct {
	cfg Config

	mu sync.Mutex
	db *sql.DB
}

var _ backend.Client = (*Client)(nil)

// NewClient creates an unconnected client. Connect must be called before use.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg}
}

// Factory returns a backend.Factory producing clients for the given config.
func Factory(cfg Config) (backend.Factory, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (backend.Client, error) {
		return NewClient(cfg), nil
	}, nil
}

// Connect opens the session and verifies it with a ping.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := sql.Open("mysql", c.cfg.DSN())
	if err != nil {
		return err
	}

	// One session per pooled client; pooling happens a layer above.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return err
	}

	c.db = db
	return nil
}

// Disconnect closes the session. Safe to call repeatedly.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// IsHealthy pings the server within the configured probe timeout.
func (c *Client) IsHealthy(ctx context.Context) bool {
	db := c.database()
	if db == nil {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.PingTimeout)
	defer cancel()

	return db.PingContext(pingCtx) == nil
}

// DB exposes the underlying handle for operations. It returns an error
// instead of a nil pointer when the client is not connected.
func (c *Client) DB() (*sql.DB, error) {
	db := c.database()
	if db == nil {
		return nil, cperrors.ErrNotConnected
	}
	return db, nil
}

// Addr reports the configured server address.
func (c *Client) Addr() string {
	return c.cfg.Addr
}

func (c *Client) database() *sql.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}
