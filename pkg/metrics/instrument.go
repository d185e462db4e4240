package metrics

import (
	"context"

	"github.com/pixelatedempathy/connpool/pkg/pool"
)

// TracedPool wraps a Pool so its blocking operations run inside tracing
// spans. Counters and histograms flow separately through
// PoolMetricsObserver; this wrapper adds spans only.
type TracedPool struct {
	pool   *pool.Pool
	tracer Tracer
}

// NewTracedPool wraps p with the given tracer.
// A nil tracer uses the global one.
func NewTracedPool(p *pool.Pool, tracer Tracer) *TracedPool {
	if tracer == nil {
		tracer = GetTracer()
	}
	return &TracedPool{
		pool:   p,
		tracer: tracer,
	}
}

// Pool returns the underlying pool.
func (t *TracedPool) Pool() *pool.Pool {
	return t.pool
}

// Acquire checks out a connection inside a pool.acquire span.
func (t *TracedPool) Acquire(ctx context.Context) (*pool.Conn, error) {
	ctx, end := t.tracer.StartSpan(ctx, SpanAcquire,
		WithAttributes(SpanAttributes{Pool: t.pool.Name()}.ToMap()))
	conn, err := t.pool.Acquire(ctx)
	end(err)
	return conn, err
}

// TryAcquire checks out a connection without blocking, inside a
// pool.try_acquire span.
func (t *TracedPool) TryAcquire(ctx context.Context) (*pool.Conn, error) {
	ctx, end := t.tracer.StartSpan(ctx, SpanTryAcquire,
		WithAttributes(SpanAttributes{Pool: t.pool.Name()}.ToMap()))
	conn, err := t.pool.TryAcquire(ctx)
	end(err)
	return conn, err
}

// Execute runs op with the pool's configured retry policy inside a
// pool.execute span.
func (t *TracedPool) Execute(ctx context.Context, op pool.Operation) error {
	ctx, end := t.tracer.StartSpan(ctx, SpanExecute,
		WithAttributes(SpanAttributes{Pool: t.pool.Name()}.ToMap()))
	err := t.pool.Execute(ctx, op)
	end(err)
	return err
}

// ExecuteRetry runs op with an explicit retry budget inside a
// pool.execute span carrying the attempt budget.
func (t *TracedPool) ExecuteRetry(ctx context.Context, op pool.Operation, retries int) error {
	ctx, end := t.tracer.StartSpan(ctx, SpanExecute,
		WithAttributes(SpanAttributes{
			Pool:     t.pool.Name(),
			Attempts: retries + 1,
		}.ToMap()))
	err := t.pool.ExecuteRetry(ctx, op, retries)
	end(err)
	return err
}

// Close disposes the pool inside a pool.dispose span.
func (t *TracedPool) Close() error {
	_, end := t.tracer.StartSpan(context.Background(), SpanDispose,
		WithAttributes(SpanAttributes{Pool: t.pool.Name()}.ToMap()))
	err := t.pool.Close()
	end(err)
	return err
}
