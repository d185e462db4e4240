package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	manager   *pool.Manager
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given
// collector. The namespace is prepended to all metric names (e.g.,
// "connpool").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// AttachManager adds per-pool metric series, labeled by pool name, from
// the manager's registered pools. Call during setup, before the
// exporter starts serving.
func (e *PrometheusExporter) AttachManager(m *pool.Manager) {
	e.manager = m
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	// --- Acquire Metrics ---
	e.writeHelp(w, "acquires_total", "Total successful connection acquires")
	e.writeType(w, "acquires_total", "counter")
	e.writeMetric(w, "acquires_total", labels, float64(snap.Acquires))

	e.writeHelp(w, "acquires_reused_total", "Total acquires satisfied by an existing connection")
	e.writeType(w, "acquires_reused_total", "counter")
	e.writeMetric(w, "acquires_reused_total", labels, float64(snap.AcquiresReused))

	e.writeHelp(w, "acquire_timeouts_total", "Total acquires that timed out waiting")
	e.writeType(w, "acquire_timeouts_total", "counter")
	e.writeMetric(w, "acquire_timeouts_total", labels, float64(snap.AcquireTimeouts))

	e.writeHelp(w, "releases_total", "Total connections returned to their pool")
	e.writeType(w, "releases_total", "counter")
	e.writeMetric(w, "releases_total", labels, float64(snap.Releases))

	// --- Connection Lifecycle Metrics ---
	e.writeHelp(w, "connections_created_total", "Total backend connections established")
	e.writeType(w, "connections_created_total", "counter")
	e.writeMetric(w, "connections_created_total", labels, float64(snap.ConnectionsCreated))

	e.writeHelp(w, "connections_destroyed_total", "Total backend connections retired, by reason")
	e.writeType(w, "connections_destroyed_total", "counter")
	for _, reason := range sortedReasons(snap.DestroyReasons) {
		reasonLabels := joinLabels(labels, fmt.Sprintf("reason=\"%s\"", escapePromValue(reason)))
		e.writeMetric(w, "connections_destroyed_total", reasonLabels, float64(snap.DestroyReasons[reason]))
	}

	// --- Operation Metrics ---
	e.writeHelp(w, "operations_total", "Total executed operation attempts")
	e.writeType(w, "operations_total", "counter")
	e.writeMetric(w, "operations_total", labels, float64(snap.Operations))

	e.writeHelp(w, "operation_errors_total", "Total failed operation attempts")
	e.writeType(w, "operation_errors_total", "counter")
	e.writeMetric(w, "operation_errors_total", labels, float64(snap.OperationErrors))

	// --- Health Metrics ---
	e.writeHelp(w, "health_checks_total", "Total connection health probes")
	e.writeType(w, "health_checks_total", "counter")
	e.writeMetric(w, "health_checks_total", labels, float64(snap.HealthChecks))

	e.writeHelp(w, "health_checks_failed_total", "Total failed connection health probes")
	e.writeType(w, "health_checks_failed_total", "counter")
	e.writeMetric(w, "health_checks_failed_total", labels, float64(snap.HealthChecksFailed))

	// --- Uptime ---
	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	e.writeHistogram(w, "acquire_wait_milliseconds", "Acquire wait time in milliseconds", labels, snap.AcquireWait)
	e.writeHistogram(w, "dial_duration_milliseconds", "Backend dial duration in milliseconds", labels, snap.DialLatency)
	e.writeHistogram(w, "operation_duration_milliseconds", "Operation duration in milliseconds", labels, snap.OperationLatency)

	if e.manager != nil {
		e.writePoolMetrics(w, labels)
	}
}

// poolGauges and poolCounters name the per-pool series and how to read
// them from a pool stats snapshot.
var poolGauges = []struct {
	name string
	help string
	get  func(pool.Stats) float64
}{
	{"pool_connections", "Current connections held by the pool", func(s pool.Stats) float64 { return float64(s.Total) }},
	{"pool_connections_active", "Connections currently handed out", func(s pool.Stats) float64 { return float64(s.Active) }},
	{"pool_connections_idle", "Connections currently idle", func(s pool.Stats) float64 { return float64(s.Idle) }},
	{"pool_waiters", "Callers currently queued in acquire", func(s pool.Stats) float64 { return float64(s.Waiting) }},
	{"pool_peak_connections", "Most connections ever held at once", func(s pool.Stats) float64 { return float64(s.PeakConnections) }},
	{"pool_avg_response_milliseconds", "Moving average operation latency", func(s pool.Stats) float64 { return s.AvgResponseMs }},
}

var poolCounters = []struct {
	name string
	help string
	get  func(pool.Stats) float64
}{
	{"pool_acquires_total", "Total successful acquires", func(s pool.Stats) float64 { return float64(s.Acquires) }},
	{"pool_acquire_timeouts_total", "Total acquires that timed out", func(s pool.Stats) float64 { return float64(s.AcquireTimeouts) }},
	{"pool_connections_created_total", "Total connections established", func(s pool.Stats) float64 { return float64(s.Created) }},
	{"pool_connections_destroyed_total", "Total connections retired", func(s pool.Stats) float64 { return float64(s.Destroyed) }},
	{"pool_operations_total", "Total executed operation attempts", func(s pool.Stats) float64 { return float64(s.Operations) }},
	{"pool_operation_errors_total", "Total failed operation attempts", func(s pool.Stats) float64 { return float64(s.Errors) }},
}

// writePoolMetrics writes per-pool series from the attached manager.
func (e *PrometheusExporter) writePoolMetrics(w io.Writer, labels string) {
	all := e.manager.AllStats()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, g := range poolGauges {
		e.writeHelp(w, g.name, g.help)
		e.writeType(w, g.name, "gauge")
		for _, name := range names {
			poolLabels := joinLabels(labels, fmt.Sprintf("pool=\"%s\"", escapePromValue(name)))
			e.writeMetric(w, g.name, poolLabels, g.get(all[name]))
		}
	}

	for _, c := range poolCounters {
		e.writeHelp(w, c.name, c.help)
		e.writeType(w, c.name, "counter")
		for _, name := range names {
			poolLabels := joinLabels(labels, fmt.Sprintf("pool=\"%s\"", escapePromValue(name)))
			e.writeMetric(w, c.name, poolLabels, c.get(all[name]))
		}
	}
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram in Prometheus format.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")

	fullName := e.namespace + "_" + name

	// Write bucket counts
	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	// Write sum and count
	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// joinLabels merges two already-formatted label fragments.
func joinLabels(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "," + b
	}
}

// sortedReasons returns the reason keys in stable order.
func sortedReasons(reasons map[string]uint64) []string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// --- Convenience Functions ---

// ServePrometheus starts an HTTP server serving Prometheus metrics.
// This is a convenience function for simple use cases.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	exp := NewPrometheusExporter(c, namespace)
	mux := http.NewServeMux()
	mux.Handle("/metrics", exp.Handler())
	return newHTTPServer(addr, mux).ListenAndServe()
}
