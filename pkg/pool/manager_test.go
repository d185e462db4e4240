package pool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// TestManagerCreatePool tests registration of a started pool.
func TestManagerCreatePool(t *testing.T) {
	m := newTestManager(t)
	fb := newFakeBackend()

	p, err := m.CreatePool(context.Background(), "cache", fb.factory(), quietConfig(2, 5))
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	if p.Size() != 2 {
		t.Errorf("Size = %d, want 2 (pool should be started)", p.Size())
	}

	got, err := m.GetPool("cache")
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if got != p {
		t.Error("GetPool returned a different pool than CreatePool")
	}
}

// TestManagerCreatePoolIdempotent tests that re-registering a name
// returns the existing pool untouched.
func TestManagerCreatePoolIdempotent(t *testing.T) {
	m := newTestManager(t)
	fb := newFakeBackend()

	ctx := context.Background()

	first, err := m.CreatePool(ctx, "cache", fb.factory(), quietConfig(1, 5))
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	dialsAfterFirst := fb.dials.Load()

	second, err := m.CreatePool(ctx, "cache", fb.factory(), quietConfig(3, 8))
	if err != nil {
		t.Fatalf("second CreatePool failed: %v", err)
	}
	if second != first {
		t.Error("second CreatePool should return the existing pool")
	}
	if got := second.Config().MaxConnections; got != 5 {
		t.Errorf("MaxConnections = %d, want 5 (original config wins)", got)
	}
	if got := fb.dials.Load(); got != dialsAfterFirst {
		t.Errorf("dials = %d, want %d (re-registration must not dial)", got, dialsAfterFirst)
	}
	if got := len(m.Pools()); got != 1 {
		t.Errorf("registered pools = %d, want 1", got)
	}
}

// TestManagerGetPoolNotFound tests the lookup failure mode.
func TestManagerGetPoolNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetPool("nope")
	if !cperrors.Is(err, cperrors.ErrPoolNotFound) {
		t.Errorf("Expected ErrPoolNotFound, got %v", err)
	}
}

// TestManagerPools tests name listing order.
func TestManagerPools(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"sessions", "cache", "queue"} {
		fb := newFakeBackend()
		if _, err := m.CreatePool(ctx, name, fb.factory(), quietConfig(1, 5)); err != nil {
			t.Fatalf("CreatePool(%q) failed: %v", name, err)
		}
	}

	got := m.Pools()
	want := []string{"cache", "queue", "sessions"}
	if len(got) != len(want) {
		t.Fatalf("Pools() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pools()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestManagerAllStats tests the aggregate stats snapshot.
func TestManagerAllStats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	fbCache := newFakeBackend()
	if _, err := m.CreatePool(ctx, "cache", fbCache.factory(), quietConfig(2, 5)); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	fbQueue := newFakeBackend()
	if _, err := m.CreatePool(ctx, "queue", fbQueue.factory(), quietConfig(1, 5)); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	all := m.AllStats()
	if len(all) != 2 {
		t.Fatalf("AllStats returned %d entries, want 2", len(all))
	}
	if all["cache"].Total != 2 {
		t.Errorf("cache Total = %d, want 2", all["cache"].Total)
	}
	if all["queue"].Total != 1 {
		t.Errorf("queue Total = %d, want 1", all["queue"].Total)
	}
}

// TestManagerHealthCheck tests the per-pool and aggregate verdicts.
func TestManagerHealthCheck(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	fb := newFakeBackend()
	p, err := m.CreatePool(ctx, "cache", fb.factory(), quietConfig(2, 5))
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	health := m.HealthCheck()
	if !health.Healthy {
		t.Error("aggregate should be healthy")
	}
	ph, ok := health.Pools["cache"]
	if !ok {
		t.Fatal("health report missing pool")
	}
	if !ph.Healthy || ph.Total != 2 || ph.MinConnections != 2 || ph.Errors != 0 {
		t.Errorf("pool health = %+v, want healthy with 2/2/0", ph)
	}

	// A single failed operation pushes the error rate past the limit.
	_ = p.ExecuteRetry(ctx, func(context.Context, backend.Client) error {
		return errors.New("nope")
	}, 0)

	health = m.HealthCheck()
	if health.Healthy {
		t.Error("aggregate should be unhealthy after operation errors")
	}
	ph = health.Pools["cache"]
	if ph.Healthy {
		t.Error("pool should be unhealthy after operation errors")
	}
	if ph.Errors != 1 {
		t.Errorf("Errors = %d, want 1", ph.Errors)
	}
}

// TestManagerHealthCheckBelowMinimum tests that a pool that cannot hold
// its minimum is reported unhealthy.
func TestManagerHealthCheckBelowMinimum(t *testing.T) {
	m := newTestManager(t)

	fb := newFakeBackend()
	fb.setDialErr(errors.New("backend down"))

	if _, err := m.CreatePool(context.Background(), "cache", fb.factory(), quietConfig(2, 5)); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	health := m.HealthCheck()
	if health.Healthy {
		t.Error("aggregate should be unhealthy")
	}
	ph := health.Pools["cache"]
	if ph.Healthy {
		t.Error("pool below minimum should be unhealthy")
	}
	if ph.Total != 0 || ph.MinConnections != 2 {
		t.Errorf("pool health = %+v, want total 0, min 2", ph)
	}
}

// TestManagerClose tests that closing the manager closes every pool and
// fails later calls.
func TestManagerClose(t *testing.T) {
	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))
	ctx := context.Background()

	fbCache := newFakeBackend()
	pCache, err := m.CreatePool(ctx, "cache", fbCache.factory(), quietConfig(2, 5))
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	fbQueue := newFakeBackend()
	if _, err := m.CreatePool(ctx, "queue", fbQueue.factory(), quietConfig(1, 5)); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if got := fbCache.client(i).disconnects.Load(); got != 1 {
			t.Errorf("cache client %d disconnects = %d, want 1", i, got)
		}
	}
	if got := fbQueue.client(0).disconnects.Load(); got != 1 {
		t.Errorf("queue client disconnects = %d, want 1", got)
	}

	if _, err := pCache.Acquire(ctx); !cperrors.Is(err, cperrors.ErrPoolClosed) {
		t.Errorf("Acquire on closed pool: got %v, want ErrPoolClosed", err)
	}
	if _, err := m.CreatePool(ctx, "late", fbCache.factory(), quietConfig(1, 5)); !cperrors.Is(err, cperrors.ErrManagerClosed) {
		t.Errorf("CreatePool after Close: got %v, want ErrManagerClosed", err)
	}
	if _, err := m.GetPool("cache"); !cperrors.Is(err, cperrors.ErrManagerClosed) {
		t.Errorf("GetPool after Close: got %v, want ErrManagerClosed", err)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Double close should be safe, got %v", err)
	}
}

// TestManagerCloseSurfacesErrors tests that disconnect failures during
// shutdown are reported, not swallowed.
func TestManagerCloseSurfacesErrors(t *testing.T) {
	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))

	fb := newFakeBackend()
	if _, err := m.CreatePool(context.Background(), "cache", fb.factory(), quietConfig(1, 5)); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	fb.client(0).setDisconnectErr(errors.New("hangup failed"))

	if err := m.Close(); err == nil {
		t.Error("Close should surface disconnect failures")
	}
}

// newTestManager builds a quiet manager torn down with the test.
func newTestManager(t *testing.T) *pool.Manager {
	t.Helper()

	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// quietConfig returns a sweep-free, metrics-free pool config for
// manager tests.
func quietConfig(min, max int) pool.Config {
	cfg := pool.DefaultConfig()
	cfg.MinConnections = min
	cfg.MaxConnections = max
	cfg.HealthCheckInterval = time.Hour
	cfg.DisableMetrics = true
	cfg.Logger = logging.NullLogger()
	return cfg
}
