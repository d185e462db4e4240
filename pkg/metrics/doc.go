// Package metrics provides observability primitives for the connpool library.
//
// # Overview
//
// The metrics package offers a complete observability solution including:
//   - Metrics collection (counters, gauges, histograms)
//   - Prometheus-compatible metrics export
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Health check endpoints
//
// # Quick Start
//
// Attach an observer to a pool and serve its numbers:
//
//	import (
//		"github.com/pixelatedempathy/connpool/pkg/metrics"
//		"github.com/pixelatedempathy/connpool/pkg/pool"
//	)
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "node-1"})
//	cfg := pool.DefaultConfig()
//	cfg.Observer = metrics.NewPoolMetricsObserver(metrics.PoolMetricsObserverConfig{
//		Collector: collector,
//		PoolName:  "cache",
//	})
//
//	// Start Prometheus server
//	go metrics.ServePrometheus(":9090", collector, "connpool")
//
// # Metrics Collection
//
// The Collector aggregates events across every pool that reports into
// it:
//
//	collector := metrics.NewCollector(metrics.Labels{
//		"instance": "node-1",
//		"region":   "us-west-2",
//	})
//
//	collector.RecordAcquire(wait, reused)
//	collector.RecordConnectionCreated(dialDuration)
//	collector.RecordOperation(latency, err)
//
//	// Get snapshot
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
// Export metrics in Prometheus format; attaching a manager adds
// per-pool series labeled with the pool name:
//
//	exporter := metrics.NewPrometheusExporter(collector, "connpool")
//	exporter.AttachManager(manager)
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
// The package provides a Tracer interface compatible with OpenTelemetry:
//
//	// Use the simple tracer for testing
//	tracer := metrics.NewSimpleTracer()
//	metrics.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses global provider)
//	otelTracer := metrics.NewOTelTracer("connpool")
//	metrics.SetTracer(otelTracer)
//	// Build with -tags otel to enable the adapter.
//
//	// Wrap a pool so acquire/execute run inside spans
//	traced := metrics.NewTracedPool(p, tracer)
//	err := traced.Execute(ctx, op)
//
// # Health Checks
//
// Provide health check endpoints for Kubernetes and load balancers:
//
//	health := metrics.NewHealthCheck(collector, "1.0.0")
//	health.AddCheck("pools", metrics.PoolCheck(manager))
//	health.AddCheck("redis", metrics.ConnectivityCheck("localhost:6379", time.Second))
//
//	http.Handle("/health", health.Handler())
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler())
//
// # Observability Server
//
// Start a complete observability server:
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Manager:          manager,
//		Version:          "1.0.0",
//		Namespace:        "connpool",
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//
//	go server.ListenAndServe(":9090")
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status
//   - /healthz - Kubernetes liveness probe
//   - /readyz  - Kubernetes readiness probe
//   - /stats   - Per-pool stats snapshots as JSON
package metrics
