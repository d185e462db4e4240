package pool

import (
	"context"
	"time"
)

// maxBackoffShift caps the backoff exponent so the delay cannot
// overflow.
const maxBackoffShift = 16

// retryDelay computes the exponential backoff before retry attempt n
// (zero-based): base * 2^attempt.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	return base << uint(attempt)
}

// sleep waits out a backoff delay, honoring ctx cancellation and the
// configured SleepFunc override.
func (p *Pool) sleep(ctx context.Context, d time.Duration) error {
	if p.config.SleepFunc != nil {
		return p.config.SleepFunc(ctx, d)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
