package metrics

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	// HealthStatusHealthy indicates all checks are passing.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates non-critical checks are failing.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates critical checks are failing.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck aggregates named checks into one health verdict.
type HealthCheck struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	collector *Collector
	startTime time.Time
	version   string
}

// CheckFunc is a function that performs a health check.
// Returns nil if healthy, or an error describing the problem.
type CheckFunc func() error

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Metrics   *HealthMetrics         `json:"metrics,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthMetrics contains key metrics for health monitoring.
type HealthMetrics struct {
	Acquires        uint64  `json:"acquires"`
	AcquireTimeouts uint64  `json:"acquire_timeouts"`
	Operations      uint64  `json:"operations"`
	OperationErrors uint64  `json:"operation_errors"`
	ErrorRate       float64 `json:"error_rate,omitempty"`
}

// NewHealthCheck creates a new health check instance.
func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		checks:    make(map[string]CheckFunc),
		collector: collector,
		startTime: time.Now(),
		version:   version,
	}
}

// AddCheck registers a named health check.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RemoveCheck removes a named health check.
func (h *HealthCheck) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// Check performs all health checks and returns the overall status.
func (h *HealthCheck) Check() HealthResponse {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		Version:   h.version,
		Checks:    make(map[string]CheckResult),
	}

	hasUnhealthy := false
	hasDegraded := false

	for name, check := range checks {
		start := time.Now()
		err := check()
		latency := time.Since(start)

		result := CheckResult{
			Status:  HealthStatusHealthy,
			Latency: latency.String(),
		}

		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Message = err.Error()
			hasUnhealthy = true
		}

		response.Checks[name] = result
	}

	// Add collector metrics if available
	if h.collector != nil {
		snap := h.collector.Snapshot()
		response.Metrics = &HealthMetrics{
			Acquires:        snap.Acquires,
			AcquireTimeouts: snap.AcquireTimeouts,
			Operations:      snap.Operations,
			OperationErrors: snap.OperationErrors,
		}

		if snap.Operations > 0 {
			response.Metrics.ErrorRate = float64(snap.OperationErrors) / float64(snap.Operations)
			// High error rate is a warning before checks start failing
			if response.Metrics.ErrorRate > 0.01 {
				hasDegraded = true
			}
		}
	}

	if hasUnhealthy {
		response.Status = HealthStatusUnhealthy
	} else if hasDegraded {
		response.Status = HealthStatusDegraded
	}

	return response
}

// Handler returns an http.Handler for the health check endpoint.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check()

		w.Header().Set("Content-Type", "application/json")

		switch response.Status {
		case HealthStatusHealthy:
			w.WriteHeader(http.StatusOK)
		case HealthStatusDegraded:
			w.WriteHeader(http.StatusOK) // Still serving, but with warnings
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			return
		}
	})
}

// LivenessHandler returns a simple liveness probe handler.
// Returns 200 OK if the service is running.
func (h *HealthCheck) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		}); err != nil {
			return
		}
	})
}

// ReadinessHandler returns a readiness probe handler.
// Returns 200 OK only if all health checks pass.
func (h *HealthCheck) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check()

		w.Header().Set("Content-Type", "application/json")

		if response.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status": response.Status,
			"ready":  response.Status != HealthStatusUnhealthy,
		}); err != nil {
			return
		}
	})
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// --- Common Health Checks ---

// PoolCheck returns a health check backed by the manager's own health
// rules. It fails when any registered pool is unhealthy, naming the
// offenders.
func PoolCheck(m *pool.Manager) CheckFunc {
	return func() error {
		health := m.HealthCheck()
		if health.Healthy {
			return nil
		}

		unhealthy := make([]string, 0, len(health.Pools))
		for name, ph := range health.Pools {
			if !ph.Healthy {
				unhealthy = append(unhealthy, name)
			}
		}
		sort.Strings(unhealthy)
		return fmt.Errorf("unhealthy pools: %s", strings.Join(unhealthy, ", "))
	}
}

// MemoryCheck returns a health check that fails when heap usage exceeds
// threshold bytes.
func MemoryCheck(threshold uint64) CheckFunc {
	return func() error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc > threshold {
			return fmt.Errorf("heap usage %d exceeds threshold %d", ms.HeapAlloc, threshold)
		}
		return nil
	}
}

// ConnectivityCheck returns a health check that verifies a TCP endpoint
// accepts connections.
func ConnectivityCheck(addr string, timeout time.Duration) CheckFunc {
	return func() error {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn.Close()
	}
}

// --- Server ---

// Server provides HTTP endpoints for metrics, health, and observability.
type Server struct {
	mux        *http.ServeMux
	collector  *Collector
	health     *HealthCheck
	prometheus *PrometheusExporter
}

// ServerConfig configures the observability server.
type ServerConfig struct {
	Collector *Collector

	// Manager, when set, adds per-pool Prometheus series, a pool health
	// check, and a JSON stats endpoint.
	Manager *pool.Manager

	Version          string
	Namespace        string // Prometheus namespace
	EnablePrometheus bool
	EnableHealth     bool
}

// NewServer creates a new observability server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "connpool"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		collector: cfg.Collector,
	}

	if cfg.EnablePrometheus {
		s.prometheus = NewPrometheusExporter(cfg.Collector, cfg.Namespace)
		if cfg.Manager != nil {
			s.prometheus.AttachManager(cfg.Manager)
		}
		s.mux.Handle("/metrics", s.prometheus.Handler())
	}

	if cfg.EnableHealth {
		s.health = NewHealthCheck(cfg.Collector, cfg.Version)
		if cfg.Manager != nil {
			s.health.AddCheck("pools", PoolCheck(cfg.Manager))
		}
		s.mux.Handle("/health", s.health.Handler())
		s.mux.Handle("/healthz", s.health.LivenessHandler())
		s.mux.Handle("/readyz", s.health.ReadinessHandler())
	}

	if cfg.Manager != nil {
		s.mux.Handle("/stats", statsHandler(cfg.Manager))
	}

	return s
}

// statsHandler serves every pool's stats snapshot as JSON.
func statsHandler(m *pool.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.AllStats()); err != nil {
			return
		}
	})
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// AddHealthCheck adds a health check to the server.
func (s *Server) AddHealthCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddCheck(name, check)
	}
}

// ListenAndServe starts the observability server.
func (s *Server) ListenAndServe(addr string) error {
	server := newHTTPServer(addr, s.mux)
	return server.ListenAndServe()
}
