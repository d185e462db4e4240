// Package connpool provides a generic, bounded pool for expensive
// resource connections with FIFO fairness, health sweeping, and retries.
//
// A pool owns a set of backend connections (Redis sessions, MySQL
// sessions, anything implementing backend.Client), hands them to one
// caller at a time, and keeps the set healthy in the background. A
// manager groups named pools, aggregates their statistics and health,
// and disposes them together.
//
// # Quick Start
//
// For a single pool over Redis:
//
//	import (
//		"github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
//		"github.com/pixelatedempathy/connpool/pkg/pool"
//	)
//
//	factory, _ := redisstore.Factory(redisstore.Config{Addr: "127.0.0.1:6379"})
//
//	p, _ := pool.New("cache", factory, pool.DefaultConfig())
//	_ = p.Start(ctx)
//	defer p.Close()
//
//	conn, _ := p.Acquire(ctx)
//	defer conn.Release()
//
// Execute borrows, runs, and returns a connection in one call, retrying
// transient failures with exponential backoff:
//
//	err := p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
//		rdb, err := c.(*redisstore.Client).Redis()
//		if err != nil {
//			return err
//		}
//		return rdb.Set(ctx, "greeting", "hello", 0).Err()
//	})
//
// Deployments usually build a manager from a config file instead:
//
//	import "github.com/pixelatedempathy/connpool/pkg/config"
//
//	cfg, _ := config.LoadConfig("connpool.toml")
//	m, _ := cfg.Build(ctx)
//	defer m.Close()
//
// # Package Structure
//
// The library is organized into several packages:
//
//   - pkg/pool: Pool, Manager, acquire/release/execute, health sweep, stats
//   - pkg/backend: the Client and Factory contracts pools dial through
//   - pkg/backend/redisstore, mysqlstore, memstore: concrete adapters
//   - pkg/config: TOML/YAML file loading, env overrides, manager assembly
//   - pkg/metrics: histograms, Prometheus exposition, health endpoints, tracing
//   - pkg/logging: leveled structured logger used across the packages
//   - internal/constants: defaults and tuning thresholds
//   - internal/errors: sentinel and wrapper error types
//
// # Pool Guarantees
//
// The pool maintains these properties:
//
//   - Bounded: never more than MaxConnections live connections, counting
//     dials in flight
//   - Fair: waiters are served strictly in arrival order
//   - Self-healing: a periodic sweep retires unhealthy and idle-expired
//     connections and replenishes up to MinConnections
//   - Quarantine: a connection crossing the error threshold is destroyed,
//     never handed out again
//   - Fail-fast: timeout and closed-pool errors surface immediately and
//     are never retried
//   - Observable: on-demand stats snapshots, observer hooks, Prometheus
//     text exposition, and health endpoints
//
// # Testing
//
// The library includes comprehensive tests:
//
//	go test ./...                       # All tests
//	go test ./pkg/pool                  # Pool unit tests
//	go test ./test/integration          # End-to-end scenarios
//	go test -bench=. ./test/benchmark   # Benchmarks
//
// # Performance
//
// Pool overhead is small next to any real backend:
//
//   - Acquire from an idle connection: one mutex hold and a slice pop
//   - Acquire that must dial: dominated by the backend connect
//   - Execute: adds a timestamp and an observer call over the bare operation
//
// For more information, see: https://github.com/pixelatedempathy/connpool
package connpool
