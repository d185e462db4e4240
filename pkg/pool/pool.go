// Package pool implements a generic connection pool over pluggable
// backends.
//
// A Pool owns a bounded set of backend clients, hands them out to
// callers FIFO under contention, retires connections that go stale or
// accumulate errors, and keeps a minimum of warm connections ready via
// a periodic health-and-replenish sweep. A Manager groups named pools
// and aggregates their statistics and health.
//
// All pool state is guarded by a single mutex; backend dials, health
// probes, and disconnects always happen outside it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixelatedempathy/connpool/internal/constants"
	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/logging"
)

// Pool manages a pool of reusable backend connections.
// It reduces the overhead of establishing new connections by reusing
// existing ones and bounds the concurrent load on the backend.
type Pool struct {
	name    string
	factory backend.Factory
	config  Config

	mu       sync.Mutex
	conns    map[string]*pooledConn // All connections, keyed by id (idle + in-use)
	idle     []*pooledConn          // Available connections (LIFO for cache locality)
	waiters  *waitQueue             // Blocked acquirers (FIFO)
	reserved int                    // Slots claimed by in-flight creations
	closed   bool
	started  bool

	connSeq   atomic.Uint64
	waiterSeq atomic.Uint64

	stats    *poolStats
	observer Observer
	logger   *logging.Logger

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopWg     sync.WaitGroup
}

// New creates a connection pool that draws clients from factory.
// The pool is inert until Start is called.
func New(name string, factory backend.Factory, config Config) (*Pool, error) {
	if name == "" {
		return nil, errors.New("pool: name cannot be empty")
	}
	if factory == nil {
		return nil, errors.New("pool: factory cannot be nil")
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	observer := config.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())

	return &Pool{
		name:       name,
		factory:    factory,
		config:     config,
		conns:      make(map[string]*pooledConn, config.MaxConnections),
		idle:       make([]*pooledConn, 0, config.MaxConnections),
		waiters:    newWaitQueue(),
		stats:      newPoolStats(),
		observer:   observer,
		logger:     logger.Named("pool").With(logging.Fields{"pool": name}),
		loopCtx:    loopCtx,
		loopCancel: loopCancel,
	}, nil
}

// Start establishes the minimum connections eagerly and launches the
// health-and-replenish sweep and the metrics loop. Calling Start more
// than once is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return cperrors.ErrPoolClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	// Pre-create minimum connections. Failures are logged and left to
	// the sweep to repair.
	for i := 0; i < p.config.MinConnections; i++ {
		p.mu.Lock()
		if p.closed || len(p.conns)+p.reserved >= p.config.MaxConnections {
			p.mu.Unlock()
			break
		}
		p.reserved++
		p.mu.Unlock()

		pc, dialDuration, err := p.createConn(ctx)
		if err != nil {
			p.unreserve()
			p.logger.Warn("initial connection failed", logging.Err(err))
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.reserved--
			p.stats.recordConnectionCreated(dialDuration, int64(len(p.conns)))
			p.mu.Unlock()
			p.observer.OnConnectionCreated(dialDuration)
			_ = p.teardown(pc, "pool_closed")
			return cperrors.ErrPoolClosed
		}
		p.adoptLocked(pc, dialDuration)
		p.idle = append(p.idle, pc)
		p.mu.Unlock()

		p.observer.OnConnectionCreated(dialDuration)
	}

	if p.config.HealthCheckInterval > 0 {
		p.loopWg.Add(1)
		go p.sweeper()
	}
	if !p.config.DisableMetrics && p.config.MetricsInterval > 0 {
		p.loopWg.Add(1)
		go p.metricsLoop()
	}

	p.logger.Info("pool started", logging.Fields{
		"min":  p.config.MinConnections,
		"max":  p.config.MaxConnections,
		"size": p.Size(),
	})
	return nil
}

// Close disposes the pool: pending and subsequent acquires fail fast,
// background loops stop, and every live connection is disconnected
// exactly once, in-use ones included. Individual disconnect failures
// are logged and do not abort the teardown; the first one is returned
// after all connections are handled. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	p.loopCancel()

	// Reject every queued waiter.
	p.waiters.failAll()

	// Collect connections to tear down outside the lock.
	connsToClose := make([]*pooledConn, 0, len(p.conns))
	for _, pc := range p.conns {
		connsToClose = append(connsToClose, pc)
	}
	p.conns = nil
	p.idle = nil
	p.mu.Unlock()

	// Wait for the sweep and metrics loops to stop.
	p.loopWg.Wait()

	var firstErr error
	for _, pc := range connsToClose {
		if err := p.teardown(pc, "pool_closed"); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.logger.Info("pool closed", logging.Fields{"conns": len(connsToClose)})
	return firstErr
}

// Acquire gets a connection from the pool, waiting up to
// Config.ConnectionTimeout when the pool is at capacity. The returned
// Conn must be given back with Release (or retired with Destroy).
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	startTime := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, cperrors.ErrPoolClosed
	}

	// Reuse an idle connection when one survives the staleness checks.
	if pc := p.popIdleLocked(); pc != nil {
		pc.setState(StateInUse)
		p.mu.Unlock()

		wait := time.Since(startTime)
		p.stats.recordAcquire(wait, false)
		p.observer.OnAcquire(wait, true)
		return newConn(pc), nil
	}

	// Room to grow: reserve a slot before dialing so concurrent
	// acquires cannot overshoot MaxConnections.
	if len(p.conns)+p.reserved < p.config.MaxConnections {
		p.reserved++
		p.mu.Unlock()
		return p.createAndAcquire(ctx, startTime)
	}

	// Pool is at capacity: queue behind earlier claimants.
	w := newWaiter(fmt.Sprintf(constants.WaiterIDFormat, p.name, p.waiterSeq.Add(1)))
	p.waiters.push(w)
	p.stats.recordWaiting(int64(p.waiters.len()))
	p.mu.Unlock()

	timer := time.NewTimer(p.config.ConnectionTimeout)
	defer timer.Stop()

	select {
	case pc, ok := <-w.ch:
		if !ok {
			// Channel closed, pool is closing.
			return nil, cperrors.ErrPoolClosed
		}
		wait := time.Since(startTime)
		p.stats.recordAcquire(wait, true)
		p.observer.OnAcquire(wait, true)
		return newConn(pc), nil

	case <-timer.C:
		pc, err := p.cancelWait(w)
		if err != nil {
			return nil, err
		}
		if pc != nil {
			// Lost the race: a handoff was already in flight.
			wait := time.Since(startTime)
			p.stats.recordAcquire(wait, true)
			p.observer.OnAcquire(wait, true)
			return newConn(pc), nil
		}
		p.stats.recordAcquireTimeout()
		p.observer.OnAcquireTimeout()
		return nil, cperrors.ErrAcquireTimeout

	case <-ctx.Done():
		pc, err := p.cancelWait(w)
		if err != nil {
			return nil, err
		}
		if pc != nil {
			wait := time.Since(startTime)
			p.stats.recordAcquire(wait, true)
			p.observer.OnAcquire(wait, true)
			return newConn(pc), nil
		}
		p.stats.recordAcquireTimeout()
		p.observer.OnAcquireTimeout()
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to get a connection without waiting.
// Returns ErrPoolExhausted when the pool is at capacity with nothing
// idle.
func (p *Pool) TryAcquire(ctx context.Context) (*Conn, error) {
	startTime := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, cperrors.ErrPoolClosed
	}

	if pc := p.popIdleLocked(); pc != nil {
		pc.setState(StateInUse)
		p.mu.Unlock()

		wait := time.Since(startTime)
		p.stats.recordAcquire(wait, false)
		p.observer.OnAcquire(wait, true)
		return newConn(pc), nil
	}

	if len(p.conns)+p.reserved < p.config.MaxConnections {
		p.reserved++
		p.mu.Unlock()
		return p.createAndAcquire(ctx, startTime)
	}

	p.mu.Unlock()
	return nil, cperrors.ErrPoolExhausted
}

// Stats returns a snapshot of current pool statistics. The gauges are
// recomputed from the live registry rather than read from cached
// counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	total := int64(len(p.conns))
	idle := int64(len(p.idle))
	waiting := int64(p.waiters.len())
	p.mu.Unlock()

	return p.stats.snapshot(total, idle, waiting)
}

// Name returns the pool's name.
func (p *Pool) Name() string {
	return p.name
}

// Config returns a copy of the pool's effective configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Size returns the current total number of connections (idle + in-use).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// IdleCount returns the current number of idle connections.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InUseCount returns the current number of in-use connections.
func (p *Pool) InUseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) - len(p.idle)
}

// release returns a connection to the pool. Exactly one of three
// things happens: the connection is destroyed (doomed ones
// immediately), handed to the oldest waiter, or parked on the idle
// list. On a closed pool release is a no-op; Close owns the teardown
// of every registered connection.
func (p *Pool) release(pc *pooledConn) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}

	if pc.doomed() {
		reason := pc.doomReason()
		p.removeLocked(pc)
		p.mu.Unlock()
		return p.teardown(pc, reason)
	}

	// Hand off to the oldest waiter. The connection is re-marked
	// in-use before the send so it is never observable as idle.
	if w := p.waiters.pop(); w != nil {
		pc.setState(StateInUse)
		w.ch <- pc
		p.mu.Unlock()
		return nil
	}

	pc.setState(StateIdle)
	p.idle = append(p.idle, pc)
	p.mu.Unlock()

	p.observer.OnRelease()
	return nil
}

// park returns a probed connection to the pool without refreshing its
// last-used stamp, so sweep probes do not mask real idleness. Waiters
// are still served first.
func (p *Pool) park(pc *pooledConn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	if w := p.waiters.pop(); w != nil {
		pc.setState(StateInUse)
		w.ch <- pc
		p.mu.Unlock()
		return
	}

	pc.setState(StateIdle)
	p.idle = append(p.idle, pc)
	p.mu.Unlock()
}

// cancelWait retires a waiter whose timer fired or whose context was
// canceled. If the waiter had already been popped for a handoff, the
// connection is accepted instead and returned; if the pool closed the
// channel, ErrPoolClosed is returned.
func (p *Pool) cancelWait(w *waiter) (*pooledConn, error) {
	p.mu.Lock()
	removed := p.waiters.remove(w)
	p.mu.Unlock()

	if removed {
		return nil, nil
	}

	// The waiter was popped before we could remove it. Sends and
	// closes happen under the mutex, so the channel already holds its
	// resolution; this receive cannot block.
	pc, ok := <-w.ch
	if !ok {
		return nil, cperrors.ErrPoolClosed
	}
	return pc, nil
}

// popIdleLocked pops the most recently used idle connection, discarding
// doomed and idle-expired entries along the way. Checks here are cheap
// field reads only; network probing belongs to the sweep. Caller must
// hold the mutex.
func (p *Pool) popIdleLocked() *pooledConn {
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle[len(p.idle)-1] = nil
		p.idle = p.idle[:len(p.idle)-1]

		if pc.doomed() {
			p.removeLocked(pc)
			go p.teardownAsync(pc, pc.doomReason())
			continue
		}
		if p.config.IdleTimeout > 0 && pc.idleTime() > p.config.IdleTimeout {
			p.removeLocked(pc)
			go p.teardownAsync(pc, "idle_expired")
			continue
		}
		return pc
	}
	return nil
}

// createAndAcquire dials a new connection for a caller holding a
// reservation and hands it over in-use.
func (p *Pool) createAndAcquire(ctx context.Context, startTime time.Time) (*Conn, error) {
	pc, dialDuration, err := p.createConn(ctx)
	if err != nil {
		p.unreserve()
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.reserved--
		p.stats.recordConnectionCreated(dialDuration, int64(len(p.conns)))
		p.mu.Unlock()
		p.observer.OnConnectionCreated(dialDuration)
		_ = p.teardown(pc, "pool_closed")
		return nil, cperrors.ErrPoolClosed
	}

	pc.setState(StateInUse)
	p.adoptLocked(pc, dialDuration)
	p.mu.Unlock()

	wait := time.Since(startTime)
	p.stats.recordAcquire(wait, false)
	p.observer.OnConnectionCreated(dialDuration)
	p.observer.OnAcquire(wait, false)

	return newConn(pc), nil
}

// createConn dials a new backend client. It does not touch the
// registry or the reservation count; callers adopt the result under
// the mutex.
func (p *Pool) createConn(ctx context.Context) (*pooledConn, time.Duration, error) {
	dialStart := time.Now()

	if p.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ConnectTimeout)
		defer cancel()
	}

	client, err := p.factory(ctx)
	if err != nil {
		return nil, 0, cperrors.NewCreateError(p.name, err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, 0, cperrors.NewCreateError(p.name, err)
	}

	id := fmt.Sprintf(constants.ConnIDFormat, p.name, p.connSeq.Add(1))
	pc := newPooledConn(id, client, p)

	dialDuration := time.Since(dialStart)
	p.logger.Debug("connection established", logging.Fields{
		"conn":    id,
		"dial_ms": dialDuration.Milliseconds(),
	})

	return pc, dialDuration, nil
}

// adoptLocked registers a freshly created connection, consuming one
// reservation. Caller must hold the mutex.
func (p *Pool) adoptLocked(pc *pooledConn, dialDuration time.Duration) {
	p.reserved--
	p.conns[pc.id] = pc
	p.stats.recordConnectionCreated(dialDuration, int64(len(p.conns)))
}

// unreserve gives back a reservation whose dial failed.
func (p *Pool) unreserve() {
	p.mu.Lock()
	p.reserved--
	p.mu.Unlock()
}

// removeLocked drops a connection from the registry and the idle list.
// Caller must hold the mutex.
func (p *Pool) removeLocked(pc *pooledConn) {
	delete(p.conns, pc.id)
	for i, c := range p.idle {
		if c == pc {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
}

// destroy removes a connection from the pool and tears it down.
func (p *Pool) destroy(pc *pooledConn, reason string) {
	p.mu.Lock()
	p.removeLocked(pc)
	p.mu.Unlock()
	_ = p.teardown(pc, reason)
}

// teardown disconnects a connection exactly once and records its end.
// Safe to call concurrently; later calls are no-ops.
func (p *Pool) teardown(pc *pooledConn, reason string) error {
	if !pc.torndown.CompareAndSwap(false, true) {
		return nil
	}
	pc.setState(StateDestroyed)

	ctx := context.Background()
	if p.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ConnectTimeout)
		defer cancel()
	}

	err := pc.client.Disconnect(ctx)
	if err != nil {
		p.logger.Warn("disconnect failed", logging.Fields{
			"conn":   pc.id,
			"reason": reason,
			"error":  err.Error(),
		})
	} else {
		p.logger.Debug("connection destroyed", logging.Fields{
			"conn":   pc.id,
			"reason": reason,
		})
	}

	p.stats.recordConnectionDestroyed()
	p.observer.OnConnectionDestroyed(reason)
	return err
}

// teardownAsync is teardown for goroutine call sites.
func (p *Pool) teardownAsync(pc *pooledConn, reason string) {
	_ = p.teardown(pc, reason)
}

// sweeper runs the periodic health-and-replenish sweep.
func (p *Pool) sweeper() {
	defer p.loopWg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(p.loopCtx)
		}
	}
}

// sweepOnce performs one health-and-replenish cycle: idle-expired
// connections are evicted, the survivors are probed off-lock, and the
// pool is refilled up to MinConnections. In-use connections are never
// touched.
func (p *Pool) sweepOnce(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	// Evict idle-expired connections and claim the rest for probing so
	// a concurrent acquire cannot grab a half-checked connection.
	var expired, toProbe []*pooledConn
	for _, pc := range p.idle {
		if p.config.IdleTimeout > 0 && pc.idleTime() > p.config.IdleTimeout {
			expired = append(expired, pc)
			continue
		}
		pc.setState(StateInUse)
		toProbe = append(toProbe, pc)
	}
	p.idle = p.idle[:0]
	for _, pc := range expired {
		p.removeLocked(pc)
	}
	p.mu.Unlock()

	for _, pc := range expired {
		_ = p.teardown(pc, "idle_expired")
	}

	// Probe claimed connections off-lock.
	for _, pc := range toProbe {
		healthy := p.probe(ctx, pc)
		p.stats.recordHealthCheck(healthy)
		p.observer.OnHealthCheck(healthy)

		if healthy {
			p.park(pc)
		} else {
			p.destroy(pc, "health_check_failed")
		}
	}

	p.replenish(ctx)

	p.observer.OnPoolStats(p.Stats())
}

// probe checks a connection's health with a bounded context.
func (p *Pool) probe(ctx context.Context, pc *pooledConn) bool {
	if p.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ConnectTimeout)
		defer cancel()
	}
	return pc.client.IsHealthy(ctx)
}

// replenish creates connections until the pool is back at
// MinConnections. A creation failure is logged and stops the loop for
// this cycle; the next sweep retries.
func (p *Pool) replenish(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.closed || len(p.conns)+p.reserved >= p.config.MinConnections {
			p.mu.Unlock()
			return
		}
		p.reserved++
		p.mu.Unlock()

		pc, dialDuration, err := p.createConn(ctx)
		if err != nil {
			p.unreserve()
			p.logger.Warn("replenish failed", logging.Err(err))
			return
		}

		p.mu.Lock()
		if p.closed {
			p.reserved--
			p.stats.recordConnectionCreated(dialDuration, int64(len(p.conns)))
			p.mu.Unlock()
			p.observer.OnConnectionCreated(dialDuration)
			_ = p.teardown(pc, "pool_closed")
			return
		}
		p.adoptLocked(pc, dialDuration)
		if w := p.waiters.pop(); w != nil {
			pc.setState(StateInUse)
			w.ch <- pc
		} else {
			p.idle = append(p.idle, pc)
		}
		p.mu.Unlock()

		p.observer.OnConnectionCreated(dialDuration)
	}
}

// metricsLoop periodically reports stats snapshots to the observer and
// the debug log.
func (p *Pool) metricsLoop() {
	defer p.loopWg.Done()

	ticker := time.NewTicker(p.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
			snap := p.Stats()
			p.observer.OnPoolStats(snap)
			p.logger.Debug("pool stats", logging.Fields{
				"total":           snap.Total,
				"active":          snap.Active,
				"idle":            snap.Idle,
				"waiting":         snap.Waiting,
				"avg_response_ms": snap.AvgResponseMs,
			})
		}
	}
}
