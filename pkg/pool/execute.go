package pool

import (
	"context"
	"errors"
	"time"

	"github.com/pixelatedempathy/connpool/internal/constants"
	cperrors "github.com/pixelatedempathy/connpool/internal/errors"
	"github.com/pixelatedempathy/connpool/pkg/backend"
	"github.com/pixelatedempathy/connpool/pkg/logging"
)

// Operation is a unit of work run against a pooled backend client.
type Operation func(ctx context.Context, client backend.Client) error

// Execute runs op on a pooled connection with the configured retry
// policy. See ExecuteRetry.
func (p *Pool) Execute(ctx context.Context, op Operation) error {
	return p.ExecuteRetry(ctx, op, p.config.MaxRetries)
}

// ExecuteRetry runs op on a pooled connection, retrying up to retries
// additional times with exponential backoff (RetryDelay doubling per
// attempt). Each attempt acquires its own connection and releases it
// before the next, so a connection that keeps failing is retired
// rather than hammered. Pool closure and acquire timeouts are surfaced
// immediately, never retried. When all attempts fail, the last error
// is returned wrapped in an *OperationError.
func (p *Pool) ExecuteRetry(ctx context.Context, op Operation, retries int) error {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, retryDelay(p.config.RetryDelay, attempt-1)); err != nil {
				return err
			}
		}

		err := p.executeOnce(ctx, op)
		if err == nil {
			return nil
		}
		if errors.Is(err, cperrors.ErrPoolClosed) || errors.Is(err, cperrors.ErrAcquireTimeout) {
			return err
		}
		lastErr = err
	}

	return cperrors.NewOperationError(retries+1, lastErr)
}

// executeOnce runs op on a freshly acquired connection, releasing it on
// every path.
func (p *Pool) executeOnce(ctx context.Context, op Operation) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	start := time.Now()
	err = op(ctx, conn.Client())
	latency := time.Since(start)

	p.stats.recordOperation(latency, err)
	p.observer.OnExecute(latency, err)

	pc := conn.pc
	pc.requestCount.Add(1)

	if err != nil {
		count := pc.errorCount.Add(1)
		if count > constants.ConnErrorThreshold {
			pc.doom()
			p.logger.Warn("connection exceeded error threshold", logging.Fields{
				"conn":   pc.id,
				"errors": count,
			})
		}
		return err
	}

	return nil
}
