package main

import (
	"fmt"
	"strings"
)

func showExamples() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      connpool: Interactive Examples                      ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	examples := []struct {
		title       string
		description string
		code        string
	}{
		{
			title:       "Example 1: Basic Pool",
			description: "Create a Redis-backed pool, acquire a connection, release it",
			code: `package main

import (
    "context"
    "fmt"
    "log"

    "github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
    "github.com/pixelatedempathy/connpool/pkg/pool"
)

func main() {
    ctx := context.Background()

    factory, err := redisstore.Factory(redisstore.Config{Addr: "localhost:6379"})
    if err != nil {
        log.Fatal(err)
    }

    p, err := pool.New("cache", factory, pool.DefaultConfig())
    if err != nil {
        log.Fatal(err)
    }
    if err := p.Start(ctx); err != nil {
        log.Fatal(err)
    }
    defer p.Close()

    conn, err := p.Acquire(ctx)
    if err != nil {
        log.Fatal(err)
    }
    defer conn.Release()

    fmt.Printf("Holding connection %s (request #%d)\n",
        conn.ID(), conn.RequestCount())
}`,
		},
		{
			title:       "Example 2: Execute with Retries",
			description: "Acquire/operate/release in one call, with exponential backoff on failure",
			code: `package main

import (
    "context"
    "log"

    "github.com/pixelatedempathy/connpool/pkg/backend"
    "github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
    "github.com/pixelatedempathy/connpool/pkg/pool"
)

func main() {
    ctx := context.Background()

    factory, _ := redisstore.Factory(redisstore.Config{Addr: "localhost:6379"})
    p, _ := pool.New("cache", factory, pool.DefaultConfig())
    p.Start(ctx)
    defer p.Close()

    // Execute borrows a connection, runs the operation, and returns
    // the connection to the pool. Failed attempts are retried with
    // exponential backoff up to Config.MaxRetries times.
    err := p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
        rdb := c.(*redisstore.Client).Redis()
        return rdb.Set(ctx, "greeting", "hello", 0).Err()
    })
    if err != nil {
        log.Fatal(err)
    }

    // ExecuteRetry overrides the retry budget for one call.
    err = p.ExecuteRetry(ctx, func(ctx context.Context, c backend.Client) error {
        rdb := c.(*redisstore.Client).Redis()
        return rdb.Get(ctx, "greeting").Err()
    }, 5)
    if err != nil {
        log.Fatal(err)
    }
}`,
		},
		{
			title:       "Example 3: Managing Multiple Pools",
			description: "A Manager owns named pools and aggregates their stats and health",
			code: `package main

import (
    "context"
    "fmt"

    "github.com/pixelatedempathy/connpool/pkg/backend/mysqlstore"
    "github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
    "github.com/pixelatedempathy/connpool/pkg/pool"
)

func main() {
    ctx := context.Background()

    m := pool.NewManager()
    defer m.Close()

    cacheFactory, _ := redisstore.Factory(redisstore.Config{Addr: "localhost:6379"})
    m.CreatePool(ctx, "cache", cacheFactory, pool.DefaultConfig())

    ordersFactory, _ := mysqlstore.Factory(mysqlstore.Config{
        Addr:     "localhost:3306",
        User:     "app",
        Password: "secret",
        Database: "orders",
    })
    m.CreatePool(ctx, "orders", ordersFactory, pool.DefaultConfig())

    // CreatePool is idempotent: asking for an existing name returns
    // the existing pool rather than building a second one.
    again, _ := m.CreatePool(ctx, "cache", cacheFactory, pool.DefaultConfig())
    fmt.Println(again.Name()) // "cache"

    for name, stats := range m.AllStats() {
        fmt.Printf("%s: total=%d idle=%d acquired=%d\n",
            name, stats.Total, stats.Idle, stats.Acquires)
    }

    health := m.HealthCheck()
    fmt.Printf("all healthy: %v\n", health.Healthy)
}`,
		},
		{
			title:       "Example 4: Configuration Files",
			description: "Declare pools in TOML or YAML and build a Manager from the file",
			code: `package main

import (
    "context"
    "log"

    "github.com/pixelatedempathy/connpool/pkg/config"
)

// connpool.toml:
//
//   [logging]
//   level = "info"
//   format = "json"
//
//   [pools.cache]
//   backend = "redis"
//   max_connections = 20
//   min_connections = 5
//   idle_timeout_seconds = 120
//
//   [pools.cache.redis]
//   addr = "localhost:6379"
//
//   [pools.orders]
//   backend = "mysql"
//
//   [pools.orders.mysql]
//   addr = "localhost:3306"
//   user = "app"
//   database = "orders"

func main() {
    cfg, err := config.LoadConfig("connpool.toml")
    if err != nil {
        log.Fatal(err)
    }

    m, err := cfg.Build(context.Background())
    if err != nil {
        log.Fatal(err)
    }
    defer m.Close()

    p, err := m.GetPool("cache")
    if err != nil {
        log.Fatal(err)
    }
    _ = p
}`,
		},
		{
			title:       "Example 5: Error Handling",
			description: "Sentinel errors for pool state, typed wrappers for operation failures",
			code: `package main

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/pixelatedempathy/connpool/pkg/backend"
    cperrors "github.com/pixelatedempathy/connpool/internal/errors"
    "github.com/pixelatedempathy/connpool/pkg/pool"
)

func main() {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()

    p := newPool() // elided

    conn, err := p.Acquire(ctx)
    if err != nil {
        switch {
        case cperrors.Is(err, cperrors.ErrAcquireTimeout):
            fmt.Println("pool at capacity, acquire timed out")
        case cperrors.Is(err, cperrors.ErrPoolClosed):
            fmt.Println("pool already closed")
        default:
            log.Printf("acquire: %v", err)
        }
        return
    }
    defer conn.Release()

    err = p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
        return doWork(ctx, c) // elided
    })

    // Execute wraps exhausted retries in an OperationError carrying
    // the attempt count and the last underlying error.
    var opErr *cperrors.OperationError
    if cperrors.As(err, &opErr) {
        log.Printf("operation failed after %d attempts: %v",
            opErr.Attempts, opErr.Err)
    }
}`,
		},
		{
			title:       "Example 6: Observability",
			description: "Metrics collection, Prometheus exposition, and acquire tracing",
			code: `package main

import (
    "context"

    "github.com/pixelatedempathy/connpool/pkg/backend/redisstore"
    "github.com/pixelatedempathy/connpool/pkg/logging"
    "github.com/pixelatedempathy/connpool/pkg/metrics"
    "github.com/pixelatedempathy/connpool/pkg/pool"
)

func main() {
    ctx := context.Background()

    logger := logging.NewLogger(logging.WithFormat(logging.FormatJSON))
    collector := metrics.NewCollector(metrics.Labels{"service": "api"})
    metrics.SetGlobal(collector)

    // Wire the pool's lifecycle events into the collector.
    cfg := pool.DefaultConfig()
    cfg.Observer = metrics.NewPoolMetricsObserver(metrics.PoolMetricsObserverConfig{
        Collector: collector,
        Logger:    logger,
        PoolName:  "cache",
    })

    factory, _ := redisstore.Factory(redisstore.Config{Addr: "localhost:6379"})

    m := pool.NewManager(pool.WithLogger(logger))
    defer m.Close()
    p, _ := m.CreatePool(ctx, "cache", factory, cfg)

    // Serve /metrics, /stats, /health, /healthz, /readyz.
    server := metrics.NewServer(metrics.ServerConfig{
        Collector:        collector,
        Manager:          m,
        Namespace:        "connpool",
        EnablePrometheus: true,
        EnableHealth:     true,
    })
    go server.ListenAndServe(":9090")

    // Trace acquire/release/execute spans around the pool.
    metrics.SetTracer(metrics.NewSimpleTracer())
    traced := metrics.NewTracedPool(p, nil)
    conn, _ := traced.Acquire(ctx)
    defer conn.Release()
}`,
		},
	}

	for i, ex := range examples {
		fmt.Printf("┌%s┐\n", strings.Repeat("─", 58))
		fmt.Printf("│ %s%s │\n", ex.title, strings.Repeat(" ", 58-len(ex.title)-2))
		fmt.Printf("└%s┘\n", strings.Repeat("─", 58))
		fmt.Println()
		fmt.Println(ex.description)
		fmt.Println()
		fmt.Println(ex.code)
		fmt.Println()

		if i < len(examples)-1 {
			fmt.Println()
		}
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    Next Steps                             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Try the demo:")
	fmt.Println("  connpool demo --pools 2 --workers 8 --duration 10s --verbose")
	fmt.Println()
	fmt.Println("Run benchmarks:")
	fmt.Println("  connpool bench --acquires 10000 --throughput")
	fmt.Println()
	fmt.Println("Serve pools from a config file:")
	fmt.Println("  connpool serve --config connpool.toml")
	fmt.Println()
	fmt.Println("Documentation:")
	fmt.Println("  https://github.com/pixelatedempathy/connpool")
	fmt.Println("  https://pkg.go.dev/github.com/pixelatedempathy/connpool")
	fmt.Println()
}
