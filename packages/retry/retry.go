// Package retry
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quoteminer/packages/metrics"
)

const DefaultMaxAttempts = 3

// Retrier re-runs an operation up to MaxAttempts times, waiting
// attempt² seconds between failures (1s, 4s, 9s, ...). The wait is a real
// suspension, cut short only by context cancellation.
type Retrier struct {
	MaxAttempts int

	// Sleep is swappable for tests; nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(maxAttempts int) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Retrier{MaxAttempts: maxAttempts}
}

// Do runs fn until it succeeds or attempts run out. Exhaustion returns the
// last error wrapped; it is never silently swallowed.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}
		delay := time.Duration(attempt*attempt) * time.Second
		slog.Warn("Operation failed, backing off", "op", op, "attempt", attempt, "delay", delay, "error", err)
		metrics.RetryWaits.WithLabelValues(op).Inc()
		if werr := r.sleep(ctx, delay); werr != nil {
			return fmt.Errorf("%s interrupted during backoff: %w", op, werr)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.MaxAttempts, err)
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
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
