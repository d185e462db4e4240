// Package constants defines the default sizing, timing, and threshold
// parameters shared by the connpool packages.
//
// The defaults target a mid-sized service talking to a single backend:
// small enough not to exhaust server-side connection limits, large enough
// that a burst of concurrent callers rarely waits.
package constants

import "time"

// Pool sizing defaults
const (
	// DefaultMaxConnections is the hard upper bound on live connections per pool
	DefaultMaxConnections = 10

	// DefaultMinConnections is the floor the replenish sweep maintains
	DefaultMinConnections = 2
)

// Timing defaults
const (
	// DefaultIdleTimeout is how long a connection may sit idle before the
	// sweep retires it
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultConnectionTimeout bounds how long an acquire waits for a
	// connection to become available
	DefaultConnectionTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds a single backend dial, both on the
	// acquire path and during sweep replenishment
	DefaultConnectTimeout = 10 * time.Second

	// DefaultHealthCheckInterval is the period of the health-and-replenish sweep
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultMetricsInterval is the period of stats snapshot emission
	DefaultMetricsInterval = time.Minute
)

// Retry defaults
const (
	// DefaultMaxRetries is the number of additional attempts Execute makes
	// after the first failure
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base of the exponential backoff between
	// attempts: delay = DefaultRetryDelay << attempt
	DefaultRetryDelay = 500 * time.Millisecond
)

// Health thresholds
const (
	// ConnErrorThreshold is the per-connection error budget. A connection
	// whose errorCount exceeds this is destroyed on release rather than
	// returned to the idle list.
	ConnErrorThreshold = 3

	// HealthyErrorRate is the cumulative-errors-to-connections ratio above
	// which a pool reports unhealthy (errors >= 10% of total connections).
	HealthyErrorRate = 0.10
)

// Latency accounting
//
// Average response time is an exponential moving average so one slow call
// cannot dominate the figure and old samples decay without a ring buffer:
//
//	avg' = avg*LatencyEMADecay + sample*LatencyEMAWeight
const (
	// LatencyEMADecay is the weight kept from the previous average
	LatencyEMADecay = 0.9

	// LatencyEMAWeight is the weight of the newest sample
	LatencyEMAWeight = 0.1
)

// Identifier formats
const (
	// ConnIDFormat is the fmt pattern for connection IDs: pool name, sequence
	ConnIDFormat = "%s-%d"

	// WaiterIDFormat is the fmt pattern for wait-queue entry IDs
	WaiterIDFormat = "%s-w%d"
)
