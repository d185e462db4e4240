// Package memstore provides an in-process key-value backend. It exists so
// demos, examples, and integration tests can exercise the full pool
// lifecycle — dial latency, outages, health probes — without an external
// service. The Store plays the server; each Client is one "connection" to it.
package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
)

// Store is the shared in-process server all clients connect to.
type Store struct {
	mu   sync.RWMutex
	data map[string]string

	available atomic.Bool
	dialDelay atomic.Int64 // nanoseconds added to every Connect

	dials   atomic.Int64
	active  atomic.Int64
	opCount atomic.Int64
}

// NewStore creates an empty, available store.
func NewStore() *Store {
	s := &Store{data: make(map[string]string)}
	s.available.Store(true)
	return s
}

// SetAvailable toggles the simulated outage state. While unavailable,
// connects fail, health probes report false, and operations error.
func (s *Store) SetAvailable(v bool) {
	s.available.Store(v)
}

// SetDialDelay adds artificial latency to every Connect.
func (s *Store) SetDialDelay(d time.Duration) {
	s.dialDelay.Store(int64(d))
}

// Dials reports how many connects succeeded since creation.
func (s *Store) Dials() int64 { return s.dials.Load() }

// ActiveClients reports currently connected clients.
func (s *Store) ActiveClients() int64 { return s.active.Load() }

// Ops reports operations served since creation.
func (s *Store) Ops() int64 { return s.opCount.Load() }

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Factory returns a backend.Factory producing clients bound to this store.
func Factory(store *Store) backend.Factory {
	return func(ctx context.Context) (backend.Client, error) {
		return NewClient(store), nil
	}
}

// Client is one logical connection to a Store.
type Client struct {
	store     *Store
	connected atomic.Bool
}

var _ backend.Client = (*Client)(nil)

// NewClient creates an unconnected client bound to the store.
func NewClient(store *Store) *Client {
	return &Client{store: store}
}

// Connect simulates a dial: waits out the configured delay, then fails if
// the store is unavailable.
func (c *Client) Connect(ctx context.Context) error {
	if delay := time.Duration(c.store.dialDelay.Load()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !c.store.available.Load() {
		return cperrors.ErrBackendUnavailable
	}

	if c.connected.CompareAndSwap(false, true) {
		c.store.dials.Add(1)
		c.store.active.Add(1)
	}
	return nil
}

// Disconnect drops the connection. Safe to call repeatedly.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.connected.CompareAndSwap(true, false) {
		c.store.active.Add(-1)
	}
	return nil
}

// IsHealthy reports whether the connection is up and the store reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.connected.Load() && c.store.available.Load()
}

// Get returns the value for key and whether it exists.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.check(); err != nil {
		return "", false, err
	}
	c.store.opCount.Add(1)
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	v, ok := c.store.data[key]
	return v, ok, nil
}

// Set stores the value under key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.store.opCount.Add(1)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.data[key] = value
	return nil
}

// Delete removes key if present.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.store.opCount.Add(1)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.data, key)
	return nil
}

func (c *Client) check() error {
	if !c.connected.Load() {
		return cperrors.ErrNotConnected
	}
	if !c.store.available.Load() {
		return cperrors.ErrBackendUnavailable
	}
	return nil
}
