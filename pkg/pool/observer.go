package pool

import "time"

// Observer provides hooks for pool lifecycle and statistics events.
// Implementations should be lightweight; callbacks may run on hot paths.
type Observer interface {
	// OnAcquire is called when a connection is acquired from the pool.
	OnAcquire(waitDuration time.Duration, reused bool)

	// OnAcquireTimeout is called when Acquire times out waiting for a connection.
	OnAcquireTimeout()

	// OnRelease is called when a connection is released back to the pool.
	OnRelease()

	// OnConnectionCreated is called when a new connection is established.
	OnConnectionCreated(dialDuration time.Duration)

	// OnConnectionDestroyed is called when a connection is removed from the pool.
	OnConnectionDestroyed(reason string)

	// OnHealthCheck is called when a health check is performed.
	OnHealthCheck(healthy bool)

	// OnExecute is called after each operation attempt with its latency
	// and outcome.
	OnExecute(latency time.Duration, err error)

	// OnPoolStats is called periodically with current pool statistics.
	// This can be used for monitoring and alerting.
	OnPoolStats(stats Stats)
}

// NoOpObserver is a no-op implementation of Observer.
// Use this when metrics are not needed.
type NoOpObserver struct{}

var _ Observer = (*NoOpObserver)(nil)

// OnAcquire implements Observer.
func (NoOpObserver) OnAcquire(time.Duration, bool) {}

// OnAcquireTimeout implements Observer.
func (NoOpObserver) OnAcquireTimeout() {}

// OnRelease implements Observer.
func (NoOpObserver) OnRelease() {}

// OnConnectionCreated implements Observer.
func (NoOpObserver) OnConnectionCreated(time.Duration) {}

// OnConnectionDestroyed implements Observer.
func (NoOpObserver) OnConnectionDestroyed(string) {}

// OnHealthCheck implements Observer.
func (NoOpObserver) OnHealthCheck(bool) {}

// OnExecute implements Observer.
func (NoOpObserver) OnExecute(time.Duration, error) {}

// OnPoolStats implements Observer.
func (NoOpObserver) OnPoolStats(Stats) {}
