// Package config loads deployment configuration for connpool from TOML
// or YAML files and assembles running managers from it.
//
// The format is chosen by file extension: .toml parses with
// pelletier/go-toml, .yaml and .yml with gopkg.in/yaml.v3. A missing
// file yields the defaults, so callers can point at a well-known path
// unconditionally. After the file, environment variables override
// individual settings:
//
//	CONNPOOL_LOG_LEVEL       logging.level
//	CONNPOOL_LOG_FORMAT      logging.format
//	CONNPOOL_SERVER_LISTEN   server.listen
//	CONNPOOL_SERVER_ENABLED  server.enabled ("true" enables)
//	CONNPOOL_REDIS_ADDR      redis.addr of every redis-backed pool
//	CONNPOOL_REDIS_USERNAME  redis.username of every redis-backed pool
//	CONNPOOL_REDIS_PASSWORD  redis.password of every redis-backed pool
//	CONNPOOL_REDIS_DB        redis.db of every redis-backed pool
//	CONNPOOL_MYSQL_ADDR      mysql.addr of every mysql-backed pool
//	CONNPOOL_MYSQL_USER      mysql.user of every mysql-backed pool
//	CONNPOOL_MYSQL_PASSWORD  mysql.password of every mysql-backed pool
//	CONNPOOL_MYSQL_DATABASE  mysql.database of every mysql-backed pool
//
// Build turns the validated configuration into a pool.Manager with one
// started pool per [pools.<name>] section.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/backend/memstore"
	"github.com/pixelatedempathy/connpool/pkg/backend/mysqlstore"
	"github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// Backend identifiers accepted in a pool section's "backend" key.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
)

// Default configuration values
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultListen    = "127.0.0.1:8080"
	DefaultNamespace = "connpool"
)

// Config is the root of a connpool configuration file.
type Config struct {
	Logging LoggingSection         `toml:"logging" yaml:"logging"`
	Server  ServerSection          `toml:"server" yaml:"server"`
	Pools   map[string]PoolSection `toml:"pools" yaml:"pools"`
}

// LoggingSection selects log verbosity and output format.
type LoggingSection struct {
	// Level is one of debug, info, warn, error, silent.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// ServerSection configures the observability HTTP server.
type ServerSection struct {
	// Enabled controls whether the server is started by the serve command.
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Listen is the address to bind the server to.
	Listen string `toml:"listen" yaml:"listen"`
	// Namespace prefixes every exported metric name.
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// PoolSection configures one named pool and the backend it dials.
// Zero values fall through to the pool package defaults, so a section
// only needs the keys it wants to change.
type PoolSection struct {
	// Backend selects the adapter: memory, redis, or mysql.
	Backend string `toml:"backend" yaml:"backend"`

	MaxConnections             int `toml:"max_connections" yaml:"max_connections"`
	MinConnections             int `toml:"min_connections" yaml:"min_connections"`
	IdleTimeoutSeconds         int `toml:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	ConnectionTimeoutMillis    int `toml:"connection_timeout_ms" yaml:"connection_timeout_ms"`
	ConnectTimeoutMillis       int `toml:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	HealthCheckIntervalSeconds int `toml:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`
	MaxRetries                 int `toml:"max_retries" yaml:"max_retries"`
	RetryDelayMillis           int `toml:"retry_delay_ms" yaml:"retry_delay_ms"`
	MetricsIntervalSeconds     int `toml:"metrics_interval_seconds" yaml:"metrics_interval_seconds"`

	// EnableMetrics defaults to true when absent; only an explicit
	// false turns periodic stats emission off.
	EnableMetrics *bool `toml:"enable_metrics" yaml:"enable_metrics"`

	Redis RedisSection `toml:"redis" yaml:"redis"`
	MySQL MySQLSection `toml:"mysql" yaml:"mysql"`
}

// RedisSection holds connection settings for a redis-backed pool.
type RedisSection struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
}

// MySQLSection holds connection settings for a mysql-backed pool.
type MySQLSection struct {
	Addr     string `toml:"addr" yaml:"addr"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	Database string `toml:"database" yaml:"database"`
}

// DefaultConfig returns a Config with sensible defaults and no pools.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerSection{
			Enabled:   true,
			Listen:    DefaultListen,
			Namespace: DefaultNamespace,
		},
		Pools: make(map[string]PoolSection),
	}
}

// LoadConfig reads configuration from a TOML or YAML file, applies
// environment overrides, and validates the result. An empty path or a
// missing file yields the defaults (plus overrides).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile parses the file at path into cfg, dispatching on the
// file extension.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported config format %q", ext)
	}
	return nil
}

// applyEnvOverrides applies CONNPOOL_* environment variables on top of
// the file values. Backend credentials apply to every pool section of
// the matching backend type, so one deployment variable can move all
// pools to a new endpoint.
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("CONNPOOL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CONNPOOL_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if listen := os.Getenv("CONNPOOL_SERVER_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if enabled := os.Getenv("CONNPOOL_SERVER_ENABLED"); enabled != "" {
		cfg.Server.Enabled = enabled == "true"
	}

	for name, section := range cfg.Pools {
		switch section.Backend {
		case BackendRedis:
			if addr := os.Getenv("CONNPOOL_REDIS_ADDR"); addr != "" {
				section.Redis.Addr = addr
			}
			if user := os.Getenv("CONNPOOL_REDIS_USERNAME"); user != "" {
				section.Redis.Username = user
			}
			if pass := os.Getenv("CONNPOOL_REDIS_PASSWORD"); pass != "" {
				section.Redis.Password = pass
			}
			if db := os.Getenv("CONNPOOL_REDIS_DB"); db != "" {
				if val, err := strconv.Atoi(db); err == nil {
					section.Redis.DB = val
				}
			}
		case BackendMySQL:
			if addr := os.Getenv("CONNPOOL_MYSQL_ADDR"); addr != "" {
				section.MySQL.Addr = addr
			}
			if user := os.Getenv("CONNPOOL_MYSQL_USER"); user != "" {
				section.MySQL.User = user
			}
			if pass := os.Getenv("CONNPOOL_MYSQL_PASSWORD"); pass != "" {
				section.MySQL.Password = pass
			}
			if db := os.Getenv("CONNPOOL_MYSQL_DATABASE"); db != "" {
				section.MySQL.Database = db
			}
		}
		cfg.Pools[name] = section
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}
	if !isValidLogFormat(c.Logging.Format) {
		return fmt.Errorf("config: invalid log format %q", c.Logging.Format)
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return errors.New("config: server.listen is required when the server is enabled")
	}

	for name, section := range c.Pools {
		if name == "" {
			return errors.New("config: pool name cannot be empty")
		}
		if err := section.validate(); err != nil {
			return fmt.Errorf("config: pool %q: %w", name, err)
		}
	}
	return nil
}

func (s *PoolSection) validate() error {
	switch s.Backend {
	case BackendMemory, BackendRedis, BackendMySQL:
	case "":
		return errors.New("backend is required")
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if s.MaxConnections < 0 {
		return errors.New("max_connections cannot be negative")
	}
	if s.MinConnections < 0 {
		return errors.New("min_connections cannot be negative")
	}
	if s.MaxConnections > 0 && s.MinConnections > s.MaxConnections {
		return errors.New("min_connections cannot exceed max_connections")
	}
	if s.IdleTimeoutSeconds < 0 {
		return errors.New("idle_timeout_seconds cannot be negative")
	}
	if s.ConnectionTimeoutMillis < 0 {
		return errors.New("connection_timeout_ms cannot be negative")
	}
	if s.ConnectTimeoutMillis < 0 {
		return errors.New("connect_timeout_ms cannot be negative")
	}
	if s.HealthCheckIntervalSeconds < 0 {
		return errors.New("health_check_interval_seconds cannot be negative")
	}
	if s.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	if s.RetryDelayMillis < 0 {
		return errors.New("retry_delay_ms cannot be negative")
	}
	if s.MetricsIntervalSeconds < 0 {
		return errors.New("metrics_interval_seconds cannot be negative")
	}
	return nil
}

// isValidLogLevel accepts the names logging.ParseLevel understands.
func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error", "silent", "off", "none":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", "text", "json":
		return true
	}
	return false
}

// Logger constructs a logger matching the logging section.
func (c *Config) Logger() *logging.Logger {
	opts := []logging.LoggerOption{
		logging.WithLevel(logging.ParseLevel(c.Logging.Level)),
	}
	if strings.EqualFold(c.Logging.Format, "json") {
		opts = append(opts, logging.WithFormat(logging.FormatJSON))
	}
	return logging.NewLogger(opts...)
}

// Build assembles a running manager from the configuration: one started
// pool per section, in name order. A backend that is down does not fail
// the build; the pool starts empty and the sweep keeps dialing. On a
// configuration-level failure the partially built manager is closed.
func (c *Config) Build(ctx context.Context) (*pool.Manager, error) {
	m := pool.NewManager(pool.WithLogger(c.Logger()))

	names := make([]string, 0, len(c.Pools))
	for name := range c.Pools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section := c.Pools[name]

		factory, err := section.factory()
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("config: pool %q: %w", name, err)
		}
		if _, err := m.CreatePool(ctx, name, factory, section.poolConfig()); err != nil {
			m.Close()
			return nil, fmt.Errorf("config: pool %q: %w", name, err)
		}
	}
	return m, nil
}

// poolConfig converts the section's file representation to a pool
// Config. Unset keys stay zero and take the pool package defaults.
func (s *PoolSection) poolConfig() pool.Config {
	cfg := pool.Config{
		MaxConnections:      s.MaxConnections,
		MinConnections:      s.MinConnections,
		IdleTimeout:         time.Duration(s.IdleTimeoutSeconds) * time.Second,
		ConnectionTimeout:   time.Duration(s.ConnectionTimeoutMillis) * time.Millisecond,
		ConnectTimeout:      time.Duration(s.ConnectTimeoutMillis) * time.Millisecond,
		HealthCheckInterval: time.Duration(s.HealthCheckIntervalSeconds) * time.Second,
		MaxRetries:          s.MaxRetries,
		RetryDelay:          time.Duration(s.RetryDelayMillis) * time.Millisecond,
		MetricsInterval:     time.Duration(s.MetricsIntervalSeconds) * time.Second,
	}
	if s.EnableMetrics != nil {
		cfg.DisableMetrics = !*s.EnableMetrics
	}
	return cfg
}

// factory maps the section's backend type to a backend factory.
func (s *PoolSection) factory() (backend.Factory, error) {
	switch s.Backend {
	case BackendMemory:
		return memstore.Factory(memstore.NewStore()), nil

	case BackendRedis:
		cfg := redisstore.Config{
			Addr:     s.Redis.Addr,
			Username: s.Redis.Username,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		}
		if s.ConnectTimeoutMillis > 0 {
			cfg.DialTimeout = time.Duration(s.ConnectTimeoutMillis) * time.Millisecond
		}
		return redisstore.Factory(cfg)

	case BackendMySQL:
		cfg := mysqlstore.Config{
			Addr:     s.MySQL.Addr,
			User:     s.MySQL.User,
			Password: s.MySQL.Password,
			Database: s.MySQL.Database,
		}
		if s.ConnectTimeoutMillis > 0 {
			cfg.DialTimeout = time.Duration(s.ConnectTimeoutMillis) * time.Millisecond
		}
		return mysqlstore.Factory(cfg)

	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

// String returns a one-line summary of the configuration for logging.
// Credentials are never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Pools: %d, LogLevel: %s, Server: %s}",
		len(c.Pools), c.Logging.Level, c.Server.Listen)
}
