package metrics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelatedempathy/connpool/pkg/backend/memstore"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/pool"
)

func TestPrometheusExporterWriteMetrics(t *testing.T) {
	c := NewCollector(Labels{"instance": "test"})

	c.RecordAcquire(10*time.Millisecond, true)
	c.RecordConnectionCreated(25 * time.Millisecond)
	c.RecordOperation(5*time.Millisecond, nil)

	exp := NewPrometheusExporter(c, "connpool")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)

	output := buf.String()

	expectedMetrics := []string{
		"connpool_acquires_total",
		"connpool_acquires_reused_total",
		"connpool_acquire_timeouts_total",
		"connpool_releases_total",
		"connpool_connections_created_total",
		"connpool_operations_total",
		"connpool_operation_errors_total",
		"connpool_health_checks_total",
		"connpool_uptime_seconds",
		"connpool_acquire_wait_milliseconds",
		"connpool_dial_duration_milliseconds",
		"connpool_operation_duration_milliseconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(output, metric) {
			t.Errorf("expected metric %q in output", metric)
		}
	}

	// Check for labels
	if !strings.Contains(output, `instance="test"`) {
		t.Error("expected label instance=\"test\" in output")
	}

	// Check for HELP and TYPE lines
	if !strings.Contains(output, "# HELP connpool_acquires_total") {
		t.Error("expected HELP line for acquires_total")
	}
	if !strings.Contains(output, "# TYPE connpool_acquires_total counter") {
		t.Error("expected TYPE line for acquires_total")
	}
	if !strings.Contains(output, "# TYPE connpool_uptime_seconds gauge") {
		t.Error("expected TYPE line for uptime_seconds")
	}
}

func TestPrometheusExporterDestroyReasons(t *testing.T) {
	c := NewCollector(nil)

	c.RecordConnectionDestroyed("idle_expired")
	c.RecordConnectionDestroyed("idle_expired")
	c.RecordConnectionDestroyed("error_threshold")

	exp := NewPrometheusExporter(c, "test")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)

	output := buf.String()

	if !strings.Contains(output, `test_connections_destroyed_total{reason="idle_expired"} 2`) {
		t.Error("expected idle_expired series with count 2")
	}
	if !strings.Contains(output, `test_connections_destroyed_total{reason="error_threshold"} 1`) {
		t.Error("expected error_threshold series with count 1")
	}

	// Reasons are emitted in sorted order for stable scrapes.
	errIdx := strings.Index(output, `reason="error_threshold"`)
	idleIdx := strings.Index(output, `reason="idle_expired"`)
	if errIdx == -1 || idleIdx == -1 || errIdx > idleIdx {
		t.Error("expected destroy reasons in sorted order")
	}
}

func TestPrometheusExporterHandler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordAcquire(time.Millisecond, false)

	exp := NewPrometheusExporter(c, "test")
	handler := exp.Handler()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("expected text/plain content type, got %s", contentType)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_acquires_total") {
		t.Error("expected acquires_total metric in response")
	}
}

func TestPrometheusExporterHistogram(t *testing.T) {
	c := NewCollector(nil)
	c.RecordAcquire(3*time.Millisecond, false)
	c.RecordAcquire(40*time.Millisecond, false)

	exp := NewPrometheusExporter(c, "test")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)

	output := buf.String()

	// Check for histogram bucket format
	if !strings.Contains(output, "_bucket{le=") {
		t.Error("expected histogram bucket format")
	}
	if !strings.Contains(output, "test_acquire_wait_milliseconds_sum") {
		t.Error("expected histogram sum")
	}
	if !strings.Contains(output, "test_acquire_wait_milliseconds_count 2") {
		t.Error("expected histogram count")
	}
	if !strings.Contains(output, `le="+Inf"`) {
		t.Error("expected +Inf bucket")
	}

	// Buckets are cumulative: both samples fit under 50ms.
	if !strings.Contains(output, `test_acquire_wait_milliseconds_bucket{le="50"} 2`) {
		t.Error("expected both samples in the 50ms bucket")
	}
}

func TestPrometheusExporterLabelEscaping(t *testing.T) {
	c := NewCollector(Labels{
		"path":    "/api/v1",
		"message": "hello \"world\"",
		"newline": "line1\nline2",
	})

	exp := NewPrometheusExporter(c, "test")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)

	output := buf.String()

	// Check proper escaping
	if strings.Contains(output, "\n\"") {
		t.Error("newline should be escaped in labels")
	}
	if strings.Contains(output, `"hello "world""`) {
		t.Error("quotes should be escaped in labels")
	}
}

func TestPrometheusExporterEmptyLabels(t *testing.T) {
	c := NewCollector(nil)
	c.RecordAcquire(time.Millisecond, false)

	exp := NewPrometheusExporter(c, "test")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)

	output := buf.String()

	// With no labels, plain counters should not have curly braces
	// (histogram buckets always carry le).
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "test_acquires_total") {
			if strings.Contains(line, "{") {
				t.Errorf("unlabeled counter should not have labels: %s", line)
			}
		}
	}
}

func TestPrometheusExporterPoolSeries(t *testing.T) {
	store := memstore.NewStore()
	m := pool.NewManager(pool.WithLogger(logging.NullLogger()))
	defer func() { _ = m.Close() }()

	cfg := quietPoolConfig()

	ctx := context.Background()
	if _, err := m.CreatePool(ctx, "cache", memstore.Factory(store), cfg); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	if _, err := m.CreatePool(ctx, "sessions", memstore.Factory(store), cfg); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}

	c := NewCollector(nil)
	exp := NewPrometheusExporter(c, "test")

	// Without an attached manager there are no per-pool series.
	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	if strings.Contains(buf.String(), "test_pool_connections") {
		t.Error("unexpected pool series before AttachManager")
	}

	exp.AttachManager(m)

	cache, err := m.GetPool("cache")
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	conn, err := cache.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := conn.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	buf.Reset()
	exp.WriteMetrics(&buf)
	output := buf.String()

	if !strings.Contains(output, `test_pool_connections{pool="cache"} 1`) {
		t.Error("expected cache pool connection gauge")
	}
	if !strings.Contains(output, `test_pool_connections{pool="sessions"} 1`) {
		t.Error("expected sessions pool connection gauge")
	}
	if !strings.Contains(output, `test_pool_acquires_total{pool="cache"} 1`) {
		t.Error("expected cache pool acquire counter")
	}
	if !strings.Contains(output, `test_pool_acquires_total{pool="sessions"} 0`) {
		t.Error("expected sessions pool acquire counter at zero")
	}
	if !strings.Contains(output, "# TYPE test_pool_connections gauge") {
		t.Error("expected TYPE line for pool gauge")
	}
	if !strings.Contains(output, "# TYPE test_pool_acquires_total counter") {
		t.Error("expected TYPE line for pool counter")
	}
}
