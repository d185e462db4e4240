package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixelatedempathy/connpool/internal/constants"
	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
)

// ConnState is the lifecycle state of a pooled connection.
type ConnState int32

const (
	// StateIdle means the connection is parked in the pool, available.
	StateIdle ConnState = iota

	// StateInUse means the connection is held by a caller (or by the
	// sweep while it probes health).
	StateInUse

	// StateDestroyed means the connection has been torn down and removed.
	StateDestroyed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in_use"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// pooledConn is the pool's internal record for one backend connection.
// State transitions happen only under the owning pool's mutex; the atomic
// fields exist so other goroutines can read without holding it.
type pooledConn struct {
	id        string
	client    backend.Client
	pool      *Pool
	createdAt time.Time

	useMu    sync.Mutex // Protects lastUsed updates
	lastUsed time.Time

	state        atomic.Int32
	doomedFlag   atomic.Bool // destroy on release instead of parking
	torndown     atomic.Bool // guards the single Disconnect
	requestCount atomic.Uint64
	errorCount   atomic.Uint32
}

// newPooledConn creates a new pooled connection record.
func newPooledConn(id string, client backend.Client, pool *Pool) *pooledConn {
	now := time.Now()
	pc := &pooledConn{
		id:        id,
		client:    client,
		pool:      pool,
		createdAt: now,
		lastUsed:  now,
	}
	pc.state.Store(int32(StateIdle))
	return pc
}

// markUsed updates the last used timestamp.
func (pc *pooledConn) markUsed() {
	pc.useMu.Lock()
	pc.lastUsed = time.Now()
	pc.useMu.Unlock()
}

// getLastUsed returns the last used time safely.
func (pc *pooledConn) getLastUsed() time.Time {
	pc.useMu.Lock()
	defer pc.useMu.Unlock()
	return pc.lastUsed
}

// age returns how old the connection is.
func (pc *pooledConn) age() time.Duration {
	return time.Since(pc.createdAt)
}

// idleTime returns how long the connection has gone without use.
func (pc *pooledConn) idleTime() time.Duration {
	return time.Since(pc.getLastUsed())
}

// doom marks the connection for destruction at the next release.
func (pc *pooledConn) doom() {
	pc.doomedFlag.Store(true)
}

// doomed reports whether the connection must not be reused.
func (pc *pooledConn) doomed() bool {
	return pc.doomedFlag.Load()
}

// doomReason names why a doomed connection is being retired.
func (pc *pooledConn) doomReason() string {
	if pc.errorCount.Load() > constants.ConnErrorThreshold {
		return "error_threshold"
	}
	return "destroyed"
}

func (pc *pooledConn) setState(s ConnState) {
	pc.state.Store(int32(s))
}

func (pc *pooledConn) getState() ConnState {
	return ConnState(pc.state.Load())
}

// Conn is the public handle returned by Acquire. It must be returned to the
// pool with Release (or retired with Destroy); both are idempotent, so a
// deferred Release after an explicit Destroy is harmless.
type Conn struct {
	pc       *pooledConn
	released atomic.Bool
}

// newConn creates a new handle for a pooled connection.
func newConn(pc *pooledConn) *Conn {
	return &Conn{pc: pc}
}

// Client returns the underlying backend client.
// Returns nil if the handle has been released.
func (c *Conn) Client() backend.Client {
	if c.released.Load() {
		return nil
	}
	return c.pc.client
}

// ID returns the pool-unique connection identifier.
func (c *Conn) ID() string {
	return c.pc.id
}

// CreatedAt returns when the connection was established.
func (c *Conn) CreatedAt() time.Time {
	return c.pc.createdAt
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState {
	return c.pc.getState()
}

// RequestCount returns how many operations have run on this connection.
func (c *Conn) RequestCount() uint64 {
	return c.pc.requestCount.Load()
}

// ErrorCount returns how many operations have failed on this connection.
func (c *Conn) ErrorCount() uint32 {
	return c.pc.errorCount.Load()
}

// Release returns the connection to the pool for reuse.
// After calling Release, the Conn must not be used.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil // Already released, idempotent
	}
	c.pc.markUsed()
	return c.pc.pool.release(c.pc)
}

// Destroy retires the connection instead of returning it: the pool
// disconnects it and removes it from its registry. Use this when the
// connection is in an unknown or broken state.
func (c *Conn) Destroy() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil // Already released/destroyed
	}
	c.pc.doom()
	return c.pc.pool.release(c.pc)
}

// Do runs fn against the connection's client, guarding against use after
// release. Errors from fn are returned as-is; they do not count toward the
// connection's error threshold the way Pool.Execute failures do.
func (c *Conn) Do(ctx context.Context, fn Operation) error {
	if c.released.Load() {
		return cperrors.ErrConnReleased
	}
	return fn(ctx, c.pc.client)
}
