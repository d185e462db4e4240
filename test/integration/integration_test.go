// Package integration provides end-to-end integration tests for the
// connpool system.
//
// These tests verify complete flows: managed pools under concurrent
// load, connection retirement and sweep recovery, config-driven
// construction, and the observability endpoints.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/backend/memstore"
	"github.com/pixelatedempathy/connpool/pkg/config"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/metrics"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// quietConfig returns a pool config that keeps background loops and
// logging out of the test's way unless a test opts back in.
func quietConfig() pool.Config {
	cfg := pool.DefaultConfig()
	cfg.HealthCheckInterval = time.Hour
	cfg.DisableMetrics = true
	cfg.Logger = logging.NullLogger()
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// TestPoolEndToEnd drives a managed pool with concurrent workers and
// verifies that stats, collector counters, and the backend agree.
func TestPoolEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()
	collector := metrics.NewCollector(metrics.Labels{"service": "test"})

	cfg := quietConfig()
	cfg.MaxConnections = 4
	cfg.MinConnections = 2
	cfg.Observer = metrics.NewPoolMetricsObserver(metrics.PoolMetricsObserverConfig{
		Collector: collector,
		Logger:    logging.NullLogger(),
		PoolName:  "workload",
	})

	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))
	p, err := m.CreatePool(ctx, "workload", memstore.Factory(store), cfg)
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	const workers = 8
	const opsPerWorker = 25

	var wg sync.WaitGroup
	var failures atomic.Int64

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", worker, i)
				err := p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
					client := c.(*memstore.Client)
					if err := client.Set(ctx, key, "v"); err != nil {
						return err
					}
					got, ok, err := client.Get(ctx, key)
					if err != nil {
						return err
					}
					if !ok || got != "v" {
						return fmt.Errorf("get %q: got %q (found=%v)", key, got, ok)
					}
					return nil
				})
				if err != nil {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := failures.Load(); n != 0 {
		t.Fatalf("%d operations failed", n)
	}

	const total = workers * opsPerWorker

	stats := p.Stats()
	if stats.Operations < total {
		t.Errorf("stats.Operations = %d, want >= %d", stats.Operations, total)
	}
	if stats.Errors != 0 {
		t.Errorf("stats.Errors = %d, want 0", stats.Errors)
	}
	if stats.Total > 4 {
		t.Errorf("stats.Total = %d, exceeds MaxConnections 4", stats.Total)
	}
	if stats.Active+stats.Idle != stats.Total {
		t.Errorf("active %d + idle %d != total %d", stats.Active, stats.Idle, stats.Total)
	}
	if stats.Active != 0 {
		t.Errorf("stats.Active = %d after all workers released", stats.Active)
	}

	snap := collector.Snapshot()
	if snap.Operations < total {
		t.Errorf("collector Operations = %d, want >= %d", snap.Operations, total)
	}
	if snap.OperationErrors != 0 {
		t.Errorf("collector OperationErrors = %d, want 0", snap.OperationErrors)
	}
	if snap.Acquires < total {
		t.Errorf("collector Acquires = %d, want >= %d", snap.Acquires, total)
	}
	if snap.ConnectionsCreated == 0 || snap.ConnectionsCreated > 4 {
		t.Errorf("collector ConnectionsCreated = %d, want 1..4", snap.ConnectionsCreated)
	}
	if store.Ops() < total*2 {
		t.Errorf("store ops = %d, want >= %d (set+get per operation)", store.Ops(), total*2)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := store.ActiveClients(); n != 0 {
		t.Errorf("store has %d active clients after Close", n)
	}
}

// TestFailingConnectionRetired verifies that a connection whose
// operations keep failing is destroyed and replaced rather than handed
// out again.
func TestFailingConnectionRetired(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	cfg := quietConfig()
	cfg.MaxConnections = 1
	cfg.MinConnections = 1

	p, err := pool.New("flaky", memstore.Factory(store), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	firstConn, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	firstID := firstConn.ID()
	if err := firstConn.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	failing := func(ctx context.Context, c backend.Client) error {
		return fmt.Errorf("backend rejected request")
	}

	// The error budget is three failures per connection; the fourth
	// dooms it. Zero retries makes each call exactly one attempt on
	// the pool's only connection.
	for i := 0; i < 4; i++ {
		if err := p.ExecuteRetry(ctx, failing, 0); err == nil {
			t.Fatalf("attempt %d: expected error", i+1)
		}
		if i < 3 && store.ActiveClients() != 1 {
			t.Fatalf("attempt %d: connection retired before exceeding error budget", i+1)
		}
	}

	if n := store.ActiveClients(); n != 0 {
		t.Errorf("store has %d active clients, want 0 after retirement", n)
	}
	if stats := p.Stats(); stats.Destroyed != 1 {
		t.Errorf("stats.Destroyed = %d, want 1", stats.Destroyed)
	}

	replacement, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after retirement failed: %v", err)
	}
	defer func() { _ = replacement.Release() }()

	if replacement.ID() == firstID {
		t.Error("acquired the retired connection instead of a fresh one")
	}
	if dials := store.Dials(); dials != 2 {
		t.Errorf("store dials = %d, want 2 (original + replacement)", dials)
	}
}

// TestSweepOutageRecovery verifies that a backend outage drains the
// pool through failed health probes and that the sweep restores the
// floor once the backend returns.
func TestSweepOutageRecovery(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	cfg := quietConfig()
	cfg.MaxConnections = 4
	cfg.MinConnections = 2
	cfg.IdleTimeout = time.Hour
	cfg.HealthCheckInterval = 25 * time.Millisecond
	cfg.ConnectTimeout = 250 * time.Millisecond
	cfg.ConnectionTimeout = 250 * time.Millisecond

	p, err := pool.New("outage", memstore.Factory(store), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	ping := func(ctx context.Context, c backend.Client) error {
		return c.(*memstore.Client).Set(ctx, "ping", "pong")
	}
	if err := p.ExecuteRetry(ctx, ping, 0); err != nil {
		t.Fatalf("Execute before outage failed: %v", err)
	}

	store.SetAvailable(false)

	// Health probes now fail, so the sweep evicts every idle
	// connection; replenish dials fail while the backend is down.
	if !waitFor(t, 2*time.Second, func() bool { return p.Size() == 0 }) {
		t.Fatalf("pool did not drain during outage: size=%d", p.Size())
	}

	stats := p.Stats()
	if stats.HealthChecksFailed == 0 {
		t.Error("expected failed health checks during outage")
	}
	if stats.Destroyed < 2 {
		t.Errorf("stats.Destroyed = %d, want >= 2", stats.Destroyed)
	}

	store.SetAvailable(true)

	if !waitFor(t, 2*time.Second, func() bool { return p.Size() >= 2 }) {
		t.Fatalf("pool did not replenish after outage: size=%d", p.Size())
	}
	if err := p.ExecuteRetry(ctx, ping, 0); err != nil {
		t.Errorf("Execute after recovery failed: %v", err)
	}
}

// TestManagerShutdown verifies that closing a manager disconnects every
// connection of every pool exactly once and leaves both pools rejecting
// new work.
func TestManagerShutdown(t *testing.T) {
	ctx := context.Background()
	storeA := memstore.NewStore()
	storeB := memstore.NewStore()

	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))

	cfg := quietConfig()
	cfg.MaxConnections = 3
	cfg.MinConnections = 2

	poolA, err := m.CreatePool(ctx, "a", memstore.Factory(storeA), cfg)
	if err != nil {
		t.Fatalf("CreatePool a failed: %v", err)
	}
	poolB, err := m.CreatePool(ctx, "b", memstore.Factory(storeB), cfg)
	if err != nil {
		t.Fatalf("CreatePool b failed: %v", err)
	}

	// Touch both pools so connections have circulated.
	for _, p := range []*pool.Pool{poolA, poolB} {
		conn, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire on %s failed: %v", p.Name(), err)
		}
		if err := conn.Release(); err != nil {
			t.Fatalf("Release on %s failed: %v", p.Name(), err)
		}
	}

	created := storeA.Dials() + storeB.Dials()
	if created < 4 {
		t.Fatalf("expected at least 4 connections across both pools, got %d", created)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if n := storeA.ActiveClients(); n != 0 {
		t.Errorf("store a has %d active clients after Close", n)
	}
	if n := storeB.ActiveClients(); n != 0 {
		t.Errorf("store b has %d active clients after Close", n)
	}

	if _, err := poolA.Acquire(ctx); !cperrors.Is(err, cperrors.ErrPoolClosed) {
		t.Errorf("pool a Acquire error = %v, want ErrPoolClosed", err)
	}
	if _, err := poolB.Acquire(ctx); !cperrors.Is(err, cperrors.ErrPoolClosed) {
		t.Errorf("pool b Acquire error = %v, want ErrPoolClosed", err)
	}

	// Closing again is safe.
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

// TestConfigFileToTraffic builds a manager from a TOML file and drives
// traffic through every declared pool.
func TestConfigFileToTraffic(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "connpool.toml")
	src := `
[logging]
level = "silent"

[pools.alpha]
backend = "memory"
max_connections = 3
min_connections = 1
health_check_interval_seconds = 3600
enable_metrics = false

[pools.beta]
backend = "memory"
max_connections = 3
min_connections = 1
health_check_interval_seconds = 3600
enable_metrics = false
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	m, err := cfg.Build(ctx)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer func() { _ = m.Close() }()

	for _, name := range m.Pools() {
		p, err := m.GetPool(name)
		if err != nil {
			t.Fatalf("GetPool(%s) failed: %v", name, err)
		}
		err = p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
			client := c.(*memstore.Client)
			if err := client.Set(ctx, "k", name); err != nil {
				return err
			}
			got, ok, err := client.Get(ctx, "k")
			if err != nil {
				return err
			}
			if !ok || got != name {
				return fmt.Errorf("get: %q (found=%v)", got, ok)
			}
			return nil
		})
		if err != nil {
			t.Errorf("Execute on %s failed: %v", name, err)
		}
	}

	all := m.AllStats()
	if len(all) != 2 {
		t.Fatalf("AllStats returned %d pools, want 2", len(all))
	}
	for name, stats := range all {
		if stats.Operations == 0 {
			t.Errorf("pool %s recorded no operations", name)
		}
	}

	if health := m.HealthCheck(); !health.Healthy {
		t.Errorf("HealthCheck reports unhealthy: %+v", health.Pools)
	}
}

// TestObservabilityEndpoints exercises the HTTP surface of a running
// deployment: Prometheus exposition, JSON stats, and the probes.
func TestObservabilityEndpoints(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()
	collector := metrics.NewCollector(metrics.Labels{"service": "test"})

	cfg := quietConfig()
	cfg.MaxConnections = 2
	cfg.MinConnections = 1
	cfg.Observer = metrics.NewPoolMetricsObserver(metrics.PoolMetricsObserverConfig{
		Collector: collector,
		Logger:    logging.NullLogger(),
		PoolName:  "cache",
	})

	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))
	defer func() { _ = m.Close() }()

	p, err := m.CreatePool(ctx, "cache", memstore.Factory(store), cfg)
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		err := p.Execute(ctx, func(ctx context.Context, c backend.Client) error {
			return c.(*memstore.Client).Set(ctx, "k", "v")
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        collector,
		Manager:          m,
		Version:          "test",
		Namespace:        "connpool",
		EnablePrometheus: true,
		EnableHealth:     true,
	})

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s body: %v", path, err)
		}
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("/metrics status = %d", code)
	}
	for _, want := range []string{
		"connpool_acquires_total",
		"connpool_operations_total",
		`connpool_pool_operations_total`,
		`pool="cache"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	code, body = get("/stats")
	if code != http.StatusOK {
		t.Fatalf("/stats status = %d", code)
	}
	var all map[string]pool.Stats
	if err := json.Unmarshal([]byte(body), &all); err != nil {
		t.Fatalf("/stats is not valid JSON: %v", err)
	}
	if stats, ok := all["cache"]; !ok {
		t.Error("/stats missing pool cache")
	} else if stats.Operations < 5 {
		t.Errorf("/stats cache.Operations = %d, want >= 5", stats.Operations)
	}

	code, body = get("/health")
	if code != http.StatusOK {
		t.Fatalf("/health status = %d, body %s", code, body)
	}
	if !strings.Contains(body, `"status":"healthy"`) {
		t.Errorf("/health body = %s, want healthy", body)
	}

	if code, _ := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz status = %d", code)
	}
	if code, _ := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz status = %d", code)
	}
}
