// Package metrics provides observability primitives for the connpool library.
//
// The package includes:
//   - Counter, gauge, and histogram metric types
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support
//   - Health check functionality
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics across every pool that reports into it.
// Attach one to pools via PoolMetricsObserver to get a library-wide
// rollup next to the per-pool numbers the pools keep themselves.
type Collector struct {
	// Acquire metrics
	acquiresTotal   atomic.Uint64
	acquiresReused  atomic.Uint64
	acquireTimeouts atomic.Uint64
	releasesTotal   atomic.Uint64

	// Connection lifecycle metrics
	connectionsCreated   atomic.Uint64
	connectionsDestroyed atomic.Uint64

	// Operation metrics
	operationsTotal atomic.Uint64
	operationErrors atomic.Uint64

	// Health metrics
	healthChecksTotal  atomic.Uint64
	healthChecksFailed atomic.Uint64

	// Destroy reasons, for labeled export
	reasonsMu      sync.Mutex
	destroyReasons map[string]uint64

	// Latency histograms
	acquireWait      *Histogram
	dialLatency      *Histogram
	operationLatency *Histogram

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		destroyReasons:   make(map[string]uint64),
		acquireWait:      NewHistogram(AcquireWaitBuckets),
		dialLatency:      NewHistogram(DialLatencyBuckets),
		operationLatency: NewHistogram(OperationLatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// AcquireWaitBuckets for acquire wait time (milliseconds).
	AcquireWaitBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

	// DialLatencyBuckets for backend dial duration (milliseconds).
	DialLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	// OperationLatencyBuckets for executed operations (milliseconds).
	OperationLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}
)

// --- Acquire Metrics ---

// RecordAcquire records a successful acquire and how long it waited.
func (c *Collector) RecordAcquire(wait time.Duration, reused bool) {
	c.acquiresTotal.Add(1)
	if reused {
		c.acquiresReused.Add(1)
	}
	c.acquireWait.Observe(durationMs(wait))
}

// RecordAcquireTimeout records an acquire that gave up waiting.
func (c *Collector) RecordAcquireTimeout() {
	c.acquireTimeouts.Add(1)
}

// RecordRelease records a connection returned to its pool.
func (c *Collector) RecordRelease() {
	c.releasesTotal.Add(1)
}

// --- Connection Lifecycle Metrics ---

// RecordConnectionCreated records a new backend connection and its dial
// duration.
func (c *Collector) RecordConnectionCreated(dial time.Duration) {
	c.connectionsCreated.Add(1)
	c.dialLatency.Observe(durationMs(dial))
}

// RecordConnectionDestroyed records a retired connection by reason.
func (c *Collector) RecordConnectionDestroyed(reason string) {
	c.connectionsDestroyed.Add(1)

	c.reasonsMu.Lock()
	c.destroyReasons[reason]++
	c.reasonsMu.Unlock()
}

// --- Operation Metrics ---

// RecordOperation records one executed operation attempt.
func (c *Collector) RecordOperation(latency time.Duration, err error) {
	c.operationsTotal.Add(1)
	if err != nil {
		c.operationErrors.Add(1)
		return
	}
	c.operationLatency.Observe(durationMs(latency))
}

// --- Health Metrics ---

// RecordHealthCheck records a probe result.
func (c *Collector) RecordHealthCheck(healthy bool) {
	c.healthChecksTotal.Add(1)
	if !healthy {
		c.healthChecksFailed.Add(1)
	}
}

// --- Snapshot ---

// Snapshot is a point-in-time snapshot of all collector metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Acquire metrics
	Acquires        uint64
	AcquiresReused  uint64
	AcquireTimeouts uint64
	Releases        uint64

	// Connection lifecycle metrics
	ConnectionsCreated   uint64
	ConnectionsDestroyed uint64
	DestroyReasons       map[string]uint64

	// Operation metrics
	Operations      uint64
	OperationErrors uint64

	// Health metrics
	HealthChecks       uint64
	HealthChecksFailed uint64

	// Histogram summaries
	AcquireWait      HistogramSummary
	DialLatency      HistogramSummary
	OperationLatency HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.reasonsMu.Lock()
	reasons := make(map[string]uint64, len(c.destroyReasons))
	for k, v := range c.destroyReasons {
		reasons[k] = v
	}
	c.reasonsMu.Unlock()

	return Snapshot{
		Timestamp:            time.Now(),
		Uptime:               time.Since(c.createdAt),
		Acquires:             c.acquiresTotal.Load(),
		AcquiresReused:       c.acquiresReused.Load(),
		AcquireTimeouts:      c.acquireTimeouts.Load(),
		Releases:             c.releasesTotal.Load(),
		ConnectionsCreated:   c.connectionsCreated.Load(),
		ConnectionsDestroyed: c.connectionsDestroyed.Load(),
		DestroyReasons:       reasons,
		Operations:           c.operationsTotal.Load(),
		OperationErrors:      c.operationErrors.Load(),
		HealthChecks:         c.healthChecksTotal.Load(),
		HealthChecksFailed:   c.healthChecksFailed.Load(),
		AcquireWait:          c.acquireWait.Summary(),
		DialLatency:          c.dialLatency.Summary(),
		OperationLatency:     c.operationLatency.Summary(),
		Labels:               c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.acquiresTotal.Store(0)
	c.acquiresReused.Store(0)
	c.acquireTimeouts.Store(0)
	c.releasesTotal.Store(0)
	c.connectionsCreated.Store(0)
	c.connectionsDestroyed.Store(0)
	c.operationsTotal.Store(0)
	c.operationErrors.Store(0)
	c.healthChecksTotal.Store(0)
	c.healthChecksFailed.Store(0)

	c.reasonsMu.Lock()
	c.destroyReasons = make(map[string]uint64)
	c.reasonsMu.Unlock()

	c.acquireWait.Reset()
	c.dialLatency.Reset()
	c.operationLatency.Reset()
	c.createdAt = time.Now()
}

// durationMs converts a duration to fractional milliseconds so sub-ms
// samples are not truncated to zero.
func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
