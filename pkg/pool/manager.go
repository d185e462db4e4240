package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pixelatedempathy/connpool/internal/constants"
	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/logging"
)

// Manager is a registry of named pools. It aggregates their statistics
// and health and disposes them together. Managers are constructed
// explicitly; there is no process-wide instance.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*Pool
	closed bool

	logger *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used by the manager and, by default, by
// the pools it creates.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an empty pool registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		pools:  make(map[string]*Pool),
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("pool.manager")
	return m
}

// CreatePool registers and starts a pool under name. It is idempotent:
// when a pool with that name already exists, the existing pool is
// returned unchanged and the new factory and config are ignored.
func (m *Manager) CreatePool(ctx context.Context, name string, factory backend.Factory, config Config) (*Pool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, cperrors.ErrManagerClosed
	}
	if existing, ok := m.pools[name]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	if config.Logger == nil {
		config.Logger = m.logger
	}

	// Construct and start outside the lock; dialing MinConnections can
	// take a while and must not block other manager calls.
	p, err := New(name, factory, config)
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = p.Close()
		return nil, cperrors.ErrManagerClosed
	}
	if existing, ok := m.pools[name]; ok {
		// Lost a create race; the first registration wins.
		m.mu.Unlock()
		_ = p.Close()
		return existing, nil
	}
	m.pools[name] = p
	m.mu.Unlock()

	m.logger.Info("pool registered", logging.Fields{"pool": name})
	return p, nil
}

// GetPool returns the pool registered under name.
func (m *Manager) GetPool(name string) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, cperrors.ErrManagerClosed
	}
	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cperrors.ErrPoolNotFound, name)
	}
	return p, nil
}

// Pools returns the names of all registered pools, sorted.
func (m *Manager) Pools() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllStats returns a stats snapshot for every registered pool.
func (m *Manager) AllStats() map[string]Stats {
	snapshot := m.snapshotPools()

	out := make(map[string]Stats, len(snapshot))
	for name, p := range snapshot {
		out[name] = p.Stats()
	}
	return out
}

// PoolHealth is the health verdict for one pool, alongside the numbers
// it was judged on.
type PoolHealth struct {
	Healthy        bool
	Total          int64
	MinConnections int
	Errors         uint64
}

// Health is an aggregate health report across all pools.
type Health struct {
	Healthy bool
	Pools   map[string]PoolHealth
}

// HealthCheck reports per-pool and aggregate health. A pool counts as
// healthy when it holds at least MinConnections connections and its
// cumulative operation errors stay under 10% of the connection count.
func (m *Manager) HealthCheck() Health {
	snapshot := m.snapshotPools()

	report := Health{
		Healthy: true,
		Pools:   make(map[string]PoolHealth, len(snapshot)),
	}
	for name, p := range snapshot {
		snap := p.Stats()
		min := p.config.MinConnections
		healthy := snap.Total >= int64(min) &&
			float64(snap.Errors) < float64(snap.Total)*constants.HealthyErrorRate

		report.Pools[name] = PoolHealth{
			Healthy:        healthy,
			Total:          snap.Total,
			MinConnections: min,
			Errors:         snap.Errors,
		}
		if !healthy {
			report.Healthy = false
		}
	}
	return report
}

// Close disposes every registered pool concurrently and clears the
// registry. Close is idempotent; per-pool errors are joined.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.pools = nil
	m.mu.Unlock()

	errs := make([]error, len(pools))
	var wg sync.WaitGroup
	for i, p := range pools {
		wg.Add(1)
		go func(i int, p *Pool) {
			defer wg.Done()
			errs[i] = p.Close()
		}(i, p)
	}
	wg.Wait()

	m.logger.Info("manager closed", logging.Fields{"pools": len(pools)})
	return errors.Join(errs...)
}

// snapshotPools copies the registry so stats and health can take
// per-pool locks without holding the manager lock.
func (m *Manager) snapshotPools() map[string]*Pool {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]*Pool, len(m.pools))
	for name, p := range m.pools {
		snapshot[name] = p
	}
	return snapshot
}
