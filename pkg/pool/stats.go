package pool

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/pixelatedempathy/connpool/internal/constants"
)

// poolStats collects cumulative statistics about pool usage.
// All fields use atomic operations for thread safety. Gauges (total,
// idle, active, waiting) are deliberately absent: the pool derives them
// from its registry under the mutex at snapshot time, so they cannot
// drift from reality.
type poolStats struct {
	// Counters (cumulative since pool creation)
	acquiresTotal        atomic.Uint64
	acquireTimeoutsTotal atomic.Uint64
	acquiresWaited       atomic.Uint64
	connectionsCreated   atomic.Uint64
	connectionsDestroyed atomic.Uint64
	operationsTotal      atomic.Uint64
	operationErrors      atomic.Uint64
	healthChecksTotal    atomic.Uint64
	healthChecksFailed   atomic.Uint64

	// Timing accumulators for averages
	totalAcquireWaitNanos atomic.Int64
	totalDialNanos        atomic.Int64
	acquireCount          atomic.Uint64
	dialCount             atomic.Uint64

	// Moving average of operation latency in milliseconds, stored as
	// math.Float64bits for atomic access.
	avgResponseBits atomic.Uint64

	// Peak tracking
	peakConnections atomic.Int64
	peakWaiting     atomic.Int64

	// Creation time
	createdAt time.Time
}

// newPoolStats creates a new poolStats instance.
func newPoolStats() *poolStats {
	return &poolStats{
		createdAt: time.Now(),
	}
}

// recordAcquire records a successful acquire operation.
func (s *poolStats) recordAcquire(waitDuration time.Duration, waited bool) {
	s.acquiresTotal.Add(1)
	s.acquireCount.Add(1)
	waitNanos := waitDuration.Nanoseconds()
	if waitNanos < 0 {
		waitNanos = 0
	}
	s.totalAcquireWaitNanos.Add(waitNanos)
	if waited {
		s.acquiresWaited.Add(1)
	}
}

// recordAcquireTimeout records an acquire timeout.
func (s *poolStats) recordAcquireTimeout() {
	s.acquireTimeoutsTotal.Add(1)
}

// recordConnectionCreated records a new connection being created.
// total is the registry size after the addition, for peak tracking.
func (s *poolStats) recordConnectionCreated(dialDuration time.Duration, total int64) {
	s.connectionsCreated.Add(1)
	s.dialCount.Add(1)
	dialNanos := dialDuration.Nanoseconds()
	if dialNanos < 0 {
		dialNanos = 0
	}
	s.totalDialNanos.Add(dialNanos)
	s.updatePeakConnections(total)
}

// recordConnectionDestroyed records a connection being torn down.
func (s *poolStats) recordConnectionDestroyed() {
	s.connectionsDestroyed.Add(1)
}

// recordOperation records one executed operation attempt. Successful
// attempts fold their latency into the moving average; failed attempts
// count toward the error total instead.
func (s *poolStats) recordOperation(latency time.Duration, err error) {
	s.operationsTotal.Add(1)
	if err != nil {
		s.operationErrors.Add(1)
		return
	}
	s.updateAvgResponse(latency)
}

// recordHealthCheck records a health check result.
func (s *poolStats) recordHealthCheck(healthy bool) {
	s.healthChecksTotal.Add(1)
	if !healthy {
		s.healthChecksFailed.Add(1)
	}
}

// recordWaiting updates peak waiting given the queue depth after an
// enqueue.
func (s *poolStats) recordWaiting(waiting int64) {
	s.updatePeakWaiting(waiting)
}

// updateAvgResponse folds a latency sample into the moving average:
// avg = avg*0.9 + sample*0.1.
func (s *poolStats) updateAvgResponse(sample time.Duration) {
	sampleMs := float64(sample.Nanoseconds()) / 1e6
	if sampleMs < 0 {
		sampleMs = 0
	}
	for {
		oldBits := s.avgResponseBits.Load()
		old := math.Float64frombits(oldBits)
		next := old*constants.LatencyEMADecay + sampleMs*constants.LatencyEMAWeight
		if s.avgResponseBits.CompareAndSwap(oldBits, math.Float64bits(next)) {
			return
		}
	}
}

// updatePeakConnections updates peak connections if current is higher.
func (s *poolStats) updatePeakConnections(current int64) {
	for {
		peak := s.peakConnections.Load()
		if current <= peak {
			return
		}
		if s.peakConnections.CompareAndSwap(peak, current) {
			return
		}
	}
}

// updatePeakWaiting updates peak waiting if current is higher.
func (s *poolStats) updatePeakWaiting(current int64) {
	for {
		peak := s.peakWaiting.Load()
		if current <= peak {
			return
		}
		if s.peakWaiting.CompareAndSwap(peak, current) {
			return
		}
	}
}

// Stats is an immutable snapshot of pool statistics.
type Stats struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since pool creation
	Uptime time.Duration

	// Current state (gauges, recomputed at snapshot time)
	Total   int64
	Active  int64
	Idle    int64
	Waiting int64

	// Cumulative counters
	Acquires           uint64
	AcquireTimeouts    uint64
	AcquiresWaited     uint64
	Created            uint64
	Destroyed          uint64
	Operations         uint64
	Errors             uint64
	HealthChecks       uint64
	HealthChecksFailed uint64

	// Averages (in milliseconds)
	AvgResponseMs    float64
	AvgAcquireWaitMs float64
	AvgDialMs        float64

	// Peak values
	PeakConnections int64
	PeakWaiting     int64
}

// snapshot builds a Stats from the cumulative counters plus the gauge
// values the pool computed under its mutex.
func (s *poolStats) snapshot(total, idle, waiting int64) Stats {
	now := time.Now()

	// Calculate averages
	var avgAcquireWait, avgDial float64
	if acquireCount := s.acquireCount.Load(); acquireCount > 0 {
		totalWaitNanos := s.totalAcquireWaitNanos.Load()
		if totalWaitNanos < 0 {
			totalWaitNanos = 0
		}
		avgAcquireWait = float64(totalWaitNanos) / float64(acquireCount) / 1e6
	}
	if dialCount := s.dialCount.Load(); dialCount > 0 {
		totalDialNanos := s.totalDialNanos.Load()
		if totalDialNanos < 0 {
			totalDialNanos = 0
		}
		avgDial = float64(totalDialNanos) / float64(dialCount) / 1e6
	}

	active := total - idle
	if active < 0 {
		active = 0
	}

	return Stats{
		Timestamp:          now,
		Uptime:             now.Sub(s.createdAt),
		Total:              total,
		Active:             active,
		Idle:               idle,
		Waiting:            waiting,
		Acquires:           s.acquiresTotal.Load(),
		AcquireTimeouts:    s.acquireTimeoutsTotal.Load(),
		AcquiresWaited:     s.acquiresWaited.Load(),
		Created:            s.connectionsCreated.Load(),
		Destroyed:          s.connectionsDestroyed.Load(),
		Operations:         s.operationsTotal.Load(),
		Errors:             s.operationErrors.Load(),
		HealthChecks:       s.healthChecksTotal.Load(),
		HealthChecksFailed: s.healthChecksFailed.Load(),
		AvgResponseMs:      math.Float64frombits(s.avgResponseBits.Load()),
		AvgAcquireWaitMs:   avgAcquireWait,
		AvgDialMs:          avgDial,
		PeakConnections:    s.peakConnections.Load(),
		PeakWaiting:        s.peakWaiting.Load(),
	}
}
