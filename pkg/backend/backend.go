// Package backend defines the contract between a connection pool and the
// service it pools connections to. The pool never speaks a backend protocol
// itself; it only creates clients through a Factory and drives their
// lifecycle through the Client interface.
//
// Adapters for concrete backends live in the subpackages redisstore,
// mysqlstore, and memstore.
package backend

import "context"

// Client is a single logical connection to a backend service. One Client is
// owned by exactly one pooled connection; the pool guarantees a Client is
// never used by two callers at once.
type Client interface {
	// Connect dials and authenticates. Calling Connect on an already
	// connected client is a no-op.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. It must be idempotent: the
	// pool may call it during disposal after an earlier teardown.
	Disconnect(ctx context.Context) error

	// IsHealthy is a cheap liveness probe. False on any failure; the pool
	// retires the connection, it never inspects the cause.
	IsHealthy(ctx context.Context) bool
}

// Factory constructs a new, not-yet-connected Client. The pool calls
// Connect itself so creation failures and dial failures stay distinguishable
// in its accounting.
type Factory func(ctx context.Context) (Client, error)
