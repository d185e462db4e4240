package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/backend/memstore"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/metrics"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

func runDemo(poolCount, workers int, durationStr string, verbose bool, obsAddr, logLevel, logFormat, tracing string) {
	collector, logger, err := setupObservability(logLevel, logFormat, tracing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	duration := parseDuration(durationStr)
	if poolCount < 1 {
		fmt.Fprintln(os.Stderr, "Error: --pools must be at least 1")
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      connpool Demo                                        ║")
	fmt.Println("║      Bounded pools · FIFO fairness · health sweep         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if verbose {
		fmt.Println("Pool Guarantees:")
		fmt.Println("  • Bounded: never more than MaxConnections live connections")
		fmt.Println("  • Fair: waiters served strictly in arrival order")
		fmt.Println("  • Self-healing: sweep retires bad connections, refills minimum")
		fmt.Println("  • Fail-fast: timeouts and closed-pool errors are never retried")
		fmt.Println()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nStopping demo...")
		cancel()
	}()

	m := pool.NewManager(pool.WithLogger(logger))
	defer func() { _ = m.Close() }()

	stores := make([]*memstore.Store, poolCount)
	names := make([]string, poolCount)
	for i := range stores {
		name := fmt.Sprintf("demo-%d", i)
		store := memstore.NewStore()

		cfg := pool.DefaultConfig()
		cfg.MaxConnections = 5
		cfg.MinConnections = 2
		cfg.HealthCheckInterval = time.Second
		cfg.MetricsInterval = 2 * time.Second
		cfg.MaxRetries = 2
		cfg.RetryDelay = 50 * time.Millisecond
		cfg.Observer = metrics.NewPoolMetricsObserver(metrics.PoolMetricsObserverConfig{
			Collector: collector,
			Logger:    logger,
			PoolName:  name,
		})

		if _, err := m.CreatePool(ctx, name, memstore.Factory(store), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create pool %s: %v\n", name, err)
			os.Exit(1)
		}
		stores[i], names[i] = store, name
		fmt.Printf("✓ Pool %s ready (max=%d, min=%d, sweep=%v)\n",
			name, cfg.MaxConnections, cfg.MinConnections, cfg.HealthCheckInterval)
	}

	if obsAddr != "" {
		server := metrics.NewServer(metrics.ServerConfig{
			Collector:        collector,
			Manager:          m,
			Version:          getVersion(),
			Namespace:        "connpool",
			EnablePrometheus: true,
			EnableHealth:     true,
		})

		go func() {
			if err := server.ListenAndServe(obsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observability server error", logging.Err(err))
			}
		}()

		fmt.Printf("✓ Observability server on %s (metrics: /metrics, health: /health, stats: /stats)\n", obsAddr)
	}

	fmt.Printf("\nRunning %d workers per pool for %v...\n\n", workers, duration)

	runCtx, stopWorkers := context.WithTimeout(ctx, duration)
	defer stopWorkers()

	var ops, opErrors atomic.Uint64
	start := time.Now()

	var wg sync.WaitGroup
	for _, name := range names {
		p, err := m.GetPool(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(p *pool.Pool, worker int) {
				defer wg.Done()
				for i := 0; runCtx.Err() == nil; i++ {
					key := fmt.Sprintf("worker-%d-key-%d", worker, i%100)
					err := p.Execute(runCtx, func(ctx context.Context, c backend.Client) error {
						client := c.(*memstore.Client)
						if err := client.Set(ctx, key, "payload"); err != nil {
							return err
						}
						_, _, err := client.Get(ctx, key)
						return err
					})
					if err != nil {
						if runCtx.Err() != nil {
							return
						}
						opErrors.Add(1)
						continue
					}
					ops.Add(1)
				}
			}(p, w)
		}
	}

	// Knock out the first backend partway through so the sweep's
	// recovery shows up in the stats and logs.
	if duration >= 2*time.Second {
		go injectOutage(runCtx, stores[0], names[0], duration/2)
	}

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(start)
				total := ops.Load()
				fmt.Printf("Progress: %d ops (%.0f ops/sec, %d errors)\r",
					total, float64(total)/elapsed.Seconds(), opErrors.Load())
			}
		}
	}()

	wg.Wait()
	<-progressDone
	elapsed := time.Since(start)
	fmt.Println()

	printDemoSummary(m, names, ops.Load(), opErrors.Load(), elapsed, verbose)

	if verbose {
		snap := collector.Snapshot()
		fmt.Println("Collector Rollup:")
		fmt.Printf("  Acquires: %d (%d reused, %d timeouts)\n", snap.Acquires, snap.AcquiresReused, snap.AcquireTimeouts)
		fmt.Printf("  Connections: %d created, %d destroyed\n", snap.ConnectionsCreated, snap.ConnectionsDestroyed)
		for reason, count := range snap.DestroyReasons {
			fmt.Printf("    destroyed %s: %d\n", reason, count)
		}
		fmt.Printf("  Acquire wait: p99 %.2fms\n", snap.AcquireWait.Percentiles[0.99])
		fmt.Println()
	}
}

// injectOutage flips one backend unavailable for a second after the
// given delay, then restores it.
func injectOutage(ctx context.Context, store *memstore.Store, name string, after time.Duration) {
	select {
	case <-time.After(after):
	case <-ctx.Done():
		return
	}

	fmt.Printf("\n[%s] Simulating backend outage on %s...\n", time.Now().Format("15:04:05"), name)
	store.SetAvailable(false)

	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}

	store.SetAvailable(true)
	fmt.Printf("[%s] Backend restored; sweep will replenish %s\n", time.Now().Format("15:04:05"), name)
}

func printDemoSummary(m *pool.Manager, names []string, ops, opErrors uint64, elapsed time.Duration, verbose bool) {
	fmt.Println("\nResults:")
	fmt.Printf("  Operations: %d (%.0f ops/sec)\n", ops, float64(ops)/elapsed.Seconds())
	fmt.Printf("  Operation errors: %d\n", opErrors)
	fmt.Println()

	stats := m.AllStats()

	fmt.Println("Pool Statistics:")
	fmt.Printf("  %-10s %5s %5s %9s %8s %10s %9s %7s %7s\n",
		"POOL", "TOTAL", "IDLE", "ACQUIRES", "CREATED", "DESTROYED", "OPS", "ERRORS", "AVG MS")
	for _, name := range names {
		s := stats[name]
		fmt.Printf("  %-10s %5d %5d %9d %8d %10d %9d %7d %7.2f\n",
			name, s.Total, s.Idle, s.Acquires, s.Created, s.Destroyed, s.Operations, s.Errors, s.AvgResponseMs)
	}
	fmt.Println()

	if verbose {
		fmt.Println("Pool Detail:")
		for _, name := range names {
			s := stats[name]
			fmt.Printf("  %s: peak=%d peakWaiting=%d avgDial=%.2fms avgWait=%.3fms healthChecks=%d (%d failed)\n",
				name, s.PeakConnections, s.PeakWaiting, s.AvgDialMs, s.AvgAcquireWaitMs, s.HealthChecks, s.HealthChecksFailed)
		}
		fmt.Println()
	}

	health := m.HealthCheck()
	fmt.Println("Health:")
	for _, name := range names {
		h := health.Pools[name]
		if h.Healthy {
			fmt.Printf("  ✓ %s: healthy (%d connections)\n", name, h.Total)
		} else {
			fmt.Printf("  ✗ %s: unhealthy (%d connections, %d minimum, %d errors)\n",
				name, h.Total, h.MinConnections, h.Errors)
		}
	}
	fmt.Println()
}

func setupObservability(logLevel, logFormat, tracing string) (*metrics.Collector, *logging.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}

	format, err := parseLogFormat(logFormat)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(
		logging.WithOutput(os.Stderr),
		logging.WithLevel(level),
		logging.WithFormat(format),
		logging.WithFields(logging.Fields{"app": "connpool"}),
	)
	logging.SetLogger(logger)

	switch strings.ToLower(tracing) {
	case "none":
		metrics.SetTracer(metrics.NoOpTracer{})
	case "simple":
		metrics.SetTracer(metrics.NewSimpleTracer())
	case "otel":
		if !metrics.OTelEnabled() {
			return nil, nil, fmt.Errorf("otel tracing not enabled (build with -tags otel)")
		}
		metrics.SetTracer(metrics.NewOTelTracer("connpool"))
	default:
		return nil, nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", tracing)
	}

	collector := metrics.NewCollector(metrics.Labels{
		"service": "connpool",
	})
	metrics.SetGlobal(collector)

	return collector, logger, nil
}

func parseLogLevel(level string) (logging.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logging.LevelDebug, nil
	case "info":
		return logging.LevelInfo, nil
	case "warn", "warning":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	case "silent", "off", "none":
		return logging.LevelSilent, nil
	default:
		return logging.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (logging.Format, error) {
	switch strings.ToLower(format) {
	case "text":
		return logging.FormatText, nil
	case "json":
		return logging.FormatJSON, nil
	default:
		return logging.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}
