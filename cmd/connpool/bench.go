package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/backend/memstore"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

func runBench(acquires int, throughputTest bool, workers int, durationStr string, maxConns int) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      connpool Benchmark                                   ║")
	fmt.Println("║      Acquire latency · Execute throughput                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if acquires == 0 && !throughputTest {
		fmt.Println("No benchmarks specified. Use --acquires or --throughput")
		fmt.Println("Run 'connpool bench --help' for usage")
		os.Exit(1)
	}

	// Pool internals log at debug; keep benchmark output clean.
	logging.SetLogger(logging.NullLogger())

	if acquires > 0 {
		benchAcquires(acquires, maxConns)
		fmt.Println()
	}

	if throughputTest {
		duration := parseDuration(durationStr)
		benchThroughput(workers, duration, maxConns)
	}
}

// benchPool builds a quiet pool over a fresh in-memory store.
func benchPool(name string, maxConns int) *pool.Pool {
	cfg := pool.DefaultConfig()
	cfg.MaxConnections = maxConns
	if cfg.MinConnections > maxConns {
		cfg.MinConnections = maxConns
	}
	cfg.HealthCheckInterval = time.Hour
	cfg.DisableMetrics = true
	cfg.Logger = logging.NullLogger()

	p, err := pool.New(name, memstore.Factory(memstore.NewStore()), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create pool: %v\n", err)
		os.Exit(1)
	}
	if err := p.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start pool: %v\n", err)
		os.Exit(1)
	}
	return p
}

func benchAcquires(count, maxConns int) {
	fmt.Printf("Benchmarking Acquire/Release (%d round trips)\n", count)
	fmt.Println(strings.Repeat("─", 60))

	p := benchPool("bench-acquire", maxConns)
	defer func() { _ = p.Close() }()

	ctx := context.Background()

	// Warm up: make sure at least one idle connection exists so the
	// measured path is the reuse path, not the first dial.
	if conn, err := p.Acquire(ctx); err == nil {
		_ = conn.Release()
	}

	fmt.Printf("Test setup: pool max=%d, idle=%d\n\n", maxConns, p.IdleCount())

	durations := make([]time.Duration, count)
	errors := 0

	startTime := time.Now()
	for i := 0; i < count; i++ {
		acquireStart := time.Now()

		conn, err := p.Acquire(ctx)
		if err != nil {
			errors++
			durations[i] = 0
			continue
		}

		durations[i] = time.Since(acquireStart)
		_ = conn.Release()

		// Progress indicator every 10% (or every iteration if count < 10)
		step := count / 10
		if step == 0 {
			step = 1
		}
		if (i+1)%step == 0 || i == count-1 {
			fmt.Printf("Progress: %d/%d (%.0f%%)\r", i+1, count, float64(i+1)/float64(count)*100)
		}
	}
	fmt.Println()

	totalTime := time.Since(startTime)
	successCount := count - errors
	printAcquireResults(count, successCount, errors, totalTime, durations)
}

func printAcquireResults(total, successful, failed int, totalTime time.Duration, durations []time.Duration) {
	if failed == total {
		fmt.Fprintf(os.Stderr, "All acquires failed\n")
		os.Exit(1)
	}

	var sum, min, max time.Duration
	min = time.Hour // Initialize to large value

	for _, d := range durations {
		if d == 0 {
			continue
		}
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	avg := sum / time.Duration(successful)

	fmt.Println("\nResults:")
	fmt.Printf("  Total round trips: %d\n", total)
	fmt.Printf("  Successful: %d\n", successful)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Total time: %v\n", totalTime)
	fmt.Println()
	fmt.Println("Acquire Performance:")
	fmt.Printf("  Average: %v\n", avg)
	fmt.Printf("  Minimum: %v\n", min)
	fmt.Printf("  Maximum: %v\n", max)
	fmt.Printf("  Throughput: %s acquires/sec\n", formatCount(int64(float64(successful)/totalTime.Seconds())))
	fmt.Println()

	printAcquireRating(avg)
}

func printAcquireRating(avg time.Duration) {
	if avg < 2*time.Microsecond {
		fmt.Println("✓ Performance: Excellent (< 2µs avg)")
	} else if avg < 10*time.Microsecond {
		fmt.Println("✓ Performance: Good (< 10µs avg)")
	} else if avg < 50*time.Microsecond {
		fmt.Println("⚠ Performance: Acceptable (< 50µs avg)")
	} else {
		fmt.Println("⚠ Performance: Slow (> 50µs avg)")
	}
}

func benchThroughput(workers int, duration time.Duration, maxConns int) {
	fmt.Printf("Benchmarking Execute Throughput\n")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Target: %d workers over %v, pool max=%d\n\n", workers, duration, maxConns)

	p := benchPool("bench-throughput", maxConns)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var ops, errCount atomic.Uint64

	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; ctx.Err() == nil; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", worker, i%1000)
				err := p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
					return c.(*memstore.Client).Set(ctx, key, "payload")
				})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errCount.Add(1)
					continue
				}
				ops.Add(1)
			}
		}(w)
	}

	// Progress update every second
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(start)
				total := ops.Load()
				fmt.Printf("Progress: %s ops (%s ops/sec)\r",
					formatCount(int64(total)), formatCount(int64(float64(total)/elapsed.Seconds())))
			}
		}
	}()

	wg.Wait()
	<-progressDone
	elapsed := time.Since(start)

	printThroughputResults(ops.Load(), errCount.Load(), elapsed, workers)
}

func printThroughputResults(ops, errCount uint64, elapsed time.Duration, workers int) {
	fmt.Println()
	fmt.Println("\nResults:")
	fmt.Printf("  Operations: %s\n", formatCount(int64(ops)))
	fmt.Printf("  Errors: %d\n", errCount)
	fmt.Printf("  Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Workers: %d\n", workers)
	fmt.Println()

	if elapsed <= 0 || ops == 0 {
		fmt.Println("⚠ No operations completed")
		return
	}

	opsPerSec := float64(ops) / elapsed.Seconds()
	perOp := time.Duration(float64(elapsed) * float64(workers) / float64(ops))

	fmt.Printf("Execute Throughput: %s ops/sec (%.2f per worker)\n",
		formatCount(int64(opsPerSec)), opsPerSec/float64(workers))
	fmt.Printf("Latency per operation: %v\n", perOp)

	printThroughputRating(opsPerSec)
}

func printThroughputRating(opsPerSec float64) {
	fmt.Println()
	if opsPerSec > 500000 {
		fmt.Println("✓ Performance: Excellent (> 500K ops/sec)")
	} else if opsPerSec > 100000 {
		fmt.Println("✓ Performance: Good (> 100K ops/sec)")
	} else if opsPerSec > 20000 {
		fmt.Println("✓ Performance: Acceptable (> 20K ops/sec)")
	} else {
		fmt.Println("⚠ Performance: May need optimization (< 20K ops/sec)")
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %s\n", s)
		os.Exit(1)
	}
	return d
}

func formatCount(n int64) string {
	switch {
	case n >= 1000000000:
		return fmt.Sprintf("%.2fB", float64(n)/1000000000)
	case n >= 1000000:
		return fmt.Sprintf("%.2fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
