// Package errors defines the error taxonomy shared by the connpool packages.
// Callers match the sentinels with errors.Is and unwrap the typed errors with
// errors.As; messages never include backend credentials or addresses.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for pool lifecycle
var (
	// ErrPoolClosed indicates the pool has been disposed; acquire, execute,
	// and queued waits all fail with it once Close begins
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrAcquireTimeout indicates an acquire waited the full connection
	// timeout without a connection becoming available
	ErrAcquireTimeout = errors.New("pool: acquire timed out")

	// ErrPoolExhausted indicates a non-blocking acquire found no idle
	// connection and no capacity to create one
	ErrPoolExhausted = errors.New("pool: no connections available")

	// ErrConnReleased indicates a connection handle was used after release
	ErrConnReleased = errors.New("pool: connection already released")
)

// Sentinel errors for manager operations
var (
	// ErrPoolNotFound indicates no pool is registered under the given name
	ErrPoolNotFound = errors.New("manager: pool not found")

	// ErrManagerClosed indicates the manager has been closed
	ErrManagerClosed = errors.New("manager: manager is closed")
)

// Sentinel errors for backend clients
var (
	// ErrNotConnected indicates an operation on a client before Connect
	// or after Disconnect
	ErrNotConnected = errors.New("backend: client not connected")

	// ErrBackendUnavailable indicates the backend refused or dropped the dial
	ErrBackendUnavailable = errors.New("backend: unavailable")
)

// CreateError wraps a connection-creation failure with the owning pool's name.
type CreateError struct {
	Pool string // Pool that attempted the creation
	Err  error  // Underlying error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("pool %s: create connection: %v", e.Pool, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// NewCreateError creates a new CreateError
func NewCreateError(pool string, err error) *CreateError {
	return &CreateError{Pool: pool, Err: err}
}

// OperationError wraps an operation failure surfaced by Execute after all
// retries are exhausted. Attempts counts every try, including the first.
type OperationError struct {
	Attempts int   // Attempts made before giving up
	Err      error // Last underlying error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("pool: operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new OperationError
func NewOperationError(attempts int, err error) *OperationError {
	return &OperationError{Attempts: attempts, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
