// Package retry runs ingestion-side upstream calls with Fibonacci backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"rag-backend/internal/domain"
)

// Policy bounds the number of retries and the first backoff step.
type Policy struct {
	MaxRetries uint64
	Base       time.Duration
}

// DefaultPolicy retries three times starting at 500ms.
var DefaultPolicy = Policy{MaxRetries: 3, Base: 500 * time.Millisecond}

// Do runs task until it succeeds, returns a permanent error, or retries run out.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, task func(ctx context.Context) error) error {
	if p.Base <= 0 {
		p.Base = DefaultPolicy.Base
	}
	if logger == nil {
		logger = slog.Default()
	}
	attempt := 0
	b := retry.WithMaxRetries(p.MaxRetries, retry.NewFibonacci(p.Base))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := task(ctx)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err) {
			return err
		}
		logger.Warn("retrying", "op", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil && attempt > 1 {
		logger.Warn("gave up", "op", op, "attempts", attempt, "error", err)
	}
	return err
}

// ShouldRetry reports whether err is worth another attempt. Cancellation and
// configuration-level failures are permanent.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, domain.ErrMissingCredential):
		return false
	}
	return true
}
