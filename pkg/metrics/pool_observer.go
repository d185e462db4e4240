package metrics

import (
	"sync/atomic"
	"time"

	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// PoolMetricsObserver implements pool.Observer, recording per-pool
// metrics and optionally feeding an aggregate Collector.
type PoolMetricsObserver struct {
	// Gauges (current state, refreshed from authoritative pool stats)
	connectionsTotal  atomic.Int64
	connectionsIdle   atomic.Int64
	connectionsActive atomic.Int64
	waitingCount      atomic.Int64

	// Counters (cumulative)
	acquiresTotal        atomic.Uint64
	acquireTimeoutsTotal atomic.Uint64
	releasesTotal        atomic.Uint64
	connectionsCreated   atomic.Uint64
	connectionsDestroyed atomic.Uint64
	operationsTotal      atomic.Uint64
	operationErrors      atomic.Uint64
	healthChecksTotal    atomic.Uint64
	healthChecksFailed   atomic.Uint64

	// Histograms
	acquireLatency *Histogram
	dialLatency    *Histogram
	executeLatency *Histogram

	// Aggregate sink; nil means per-pool only
	collector *Collector

	logger *logging.Logger

	// Pool name/identifier for labeling
	poolName string
}

// PoolMetricsObserverConfig configures a pool metrics observer.
type PoolMetricsObserverConfig struct {
	// Collector receives a cross-pool rollup of every event. Optional.
	Collector *Collector

	Logger   *logging.Logger
	PoolName string
}

// NewPoolMetricsObserver creates a new pool metrics observer.
func NewPoolMetricsObserver(cfg PoolMetricsObserverConfig) *PoolMetricsObserver {
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger()
	}
	if cfg.PoolName == "" {
		cfg.PoolName = "default"
	}

	return &PoolMetricsObserver{
		acquireLatency: NewHistogram(AcquireWaitBuckets),
		dialLatency:    NewHistogram(DialLatencyBuckets),
		executeLatency: NewHistogram(OperationLatencyBuckets),
		collector:      cfg.Collector,
		logger:         cfg.Logger.Named("metrics").With(logging.Fields{"pool": cfg.PoolName}),
		poolName:       cfg.PoolName,
	}
}

// Ensure PoolMetricsObserver implements pool.Observer.
var _ pool.Observer = (*PoolMetricsObserver)(nil)

// OnAcquire implements pool.Observer.
func (o *PoolMetricsObserver) OnAcquire(waitDuration time.Duration, reused bool) {
	o.acquiresTotal.Add(1)
	o.acquireLatency.Observe(durationMs(waitDuration))
	o.connectionsActive.Add(1)
	if reused {
		o.connectionsIdle.Add(-1)
	}
	if o.collector != nil {
		o.collector.RecordAcquire(waitDuration, reused)
	}

	o.logger.Debug("connection acquired", logging.Fields{
		"wait_ms": durationMs(waitDuration),
		"reused":  reused,
	})
}

// OnAcquireTimeout implements pool.Observer.
func (o *PoolMetricsObserver) OnAcquireTimeout() {
	o.acquireTimeoutsTotal.Add(1)
	if o.collector != nil {
		o.collector.RecordAcquireTimeout()
	}
	o.logger.Warn("acquire timed out")
}

// OnRelease implements pool.Observer.
func (o *PoolMetricsObserver) OnRelease() {
	o.releasesTotal.Add(1)
	if current := o.connectionsActive.Add(-1); current < 0 {
		o.connectionsActive.Store(0)
	}
	o.connectionsIdle.Add(1)
	if o.collector != nil {
		o.collector.RecordRelease()
	}
	o.logger.Debug("connection released")
}

// OnConnectionCreated implements pool.Observer.
func (o *PoolMetricsObserver) OnConnectionCreated(dialDuration time.Duration) {
	o.connectionsCreated.Add(1)
	o.connectionsTotal.Add(1)
	o.dialLatency.Observe(durationMs(dialDuration))
	if o.collector != nil {
		o.collector.RecordConnectionCreated(dialDuration)
	}

	o.logger.Info("connection created", logging.Fields{
		"dial_ms": durationMs(dialDuration),
	})
}

// OnConnectionDestroyed implements pool.Observer.
func (o *PoolMetricsObserver) OnConnectionDestroyed(reason string) {
	o.connectionsDestroyed.Add(1)
	o.connectionsTotal.Add(-1)
	if o.collector != nil {
		o.collector.RecordConnectionDestroyed(reason)
	}

	o.logger.Info("connection destroyed", logging.Fields{
		"reason": reason,
	})
}

// OnHealthCheck implements pool.Observer.
func (o *PoolMetricsObserver) OnHealthCheck(healthy bool) {
	o.healthChecksTotal.Add(1)
	if !healthy {
		o.healthChecksFailed.Add(1)
		o.logger.Warn("health check failed")
	}
	if o.collector != nil {
		o.collector.RecordHealthCheck(healthy)
	}
}

// OnExecute implements pool.Observer.
func (o *PoolMetricsObserver) OnExecute(latency time.Duration, err error) {
	o.operationsTotal.Add(1)
	if err != nil {
		o.operationErrors.Add(1)
	} else {
		o.executeLatency.Observe(durationMs(latency))
	}
	if o.collector != nil {
		o.collector.RecordOperation(latency, err)
	}
}

// OnPoolStats implements pool.Observer.
func (o *PoolMetricsObserver) OnPoolStats(stats pool.Stats) {
	// Refresh gauges from the authoritative snapshot.
	o.connectionsTotal.Store(stats.Total)
	o.connectionsIdle.Store(stats.Idle)
	o.connectionsActive.Store(stats.Active)
	o.waitingCount.Store(stats.Waiting)

	o.logger.Debug("pool stats", logging.Fields{
		"total":      stats.Total,
		"active":     stats.Active,
		"idle":       stats.Idle,
		"waiting":    stats.Waiting,
		"acquires":   stats.Acquires,
		"timeouts":   stats.AcquireTimeouts,
		"created":    stats.Created,
		"destroyed":  stats.Destroyed,
		"uptime_sec": stats.Uptime.Seconds(),
	})
}

// PoolMetricsSnapshot is a snapshot of per-pool metrics.
type PoolMetricsSnapshot struct {
	// Current state (gauges)
	ConnectionsTotal  int64
	ConnectionsIdle   int64
	ConnectionsActive int64
	WaitingCount      int64

	// Cumulative counters
	AcquiresTotal        uint64
	AcquireTimeoutsTotal uint64
	ReleasesTotal        uint64
	ConnectionsCreated   uint64
	ConnectionsDestroyed uint64
	OperationsTotal      uint64
	OperationErrors      uint64
	HealthChecksTotal    uint64
	HealthChecksFailed   uint64

	// Histogram summaries
	AcquireLatency HistogramSummary
	DialLatency    HistogramSummary
	ExecuteLatency HistogramSummary

	// Pool identifier
	PoolName string
}

// Snapshot returns a point-in-time snapshot of pool metrics.
func (o *PoolMetricsObserver) Snapshot() PoolMetricsSnapshot {
	return PoolMetricsSnapshot{
		ConnectionsTotal:     o.connectionsTotal.Load(),
		ConnectionsIdle:      o.connectionsIdle.Load(),
		ConnectionsActive:    o.connectionsActive.Load(),
		WaitingCount:         o.waitingCount.Load(),
		AcquiresTotal:        o.acquiresTotal.Load(),
		AcquireTimeoutsTotal: o.acquireTimeoutsTotal.Load(),
		ReleasesTotal:        o.releasesTotal.Load(),
		ConnectionsCreated:   o.connectionsCreated.Load(),
		ConnectionsDestroyed: o.connectionsDestroyed.Load(),
		OperationsTotal:      o.operationsTotal.Load(),
		OperationErrors:      o.operationErrors.Load(),
		HealthChecksTotal:    o.healthChecksTotal.Load(),
		HealthChecksFailed:   o.healthChecksFailed.Load(),
		AcquireLatency:       o.acquireLatency.Summary(),
		DialLatency:          o.dialLatency.Summary(),
		ExecuteLatency:       o.executeLatency.Summary(),
		PoolName:             o.poolName,
	}
}

// Reset clears all metrics (useful for testing).
func (o *PoolMetricsObserver) Reset() {
	o.connectionsTotal.Store(0)
	o.connectionsIdle.Store(0)
	o.connectionsActive.Store(0)
	o.waitingCount.Store(0)
	o.acquiresTotal.Store(0)
	o.acquireTimeoutsTotal.Store(0)
	o.releasesTotal.Store(0)
	o.connectionsCreated.Store(0)
	o.connectionsDestroyed.Store(0)
	o.operationsTotal.Store(0)
	o.operationErrors.Store(0)
	o.healthChecksTotal.Store(0)
	o.healthChecksFailed.Store(0)
	o.acquireLatency.Reset()
	o.dialLatency.Reset()
	o.executeLatency.Reset()
}
