package common

import (
	"context"
	"fmt"
	"log/slog"
)

// Retry runs fn up to attempts times, stopping at the first success or when
// the context is done. Each failed attempt is logged with its count and
// cause; the last error is returned after exhaustion. No backoff: calls are
// strictly sequential and the caller owns any pacing.
func Retry(ctx context.Context, op string, attempts int, logger *slog.Logger, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("retry.recovered", "op", op, "attempt", attempt)
			}
			return nil
		}
		logger.Warn("retry.attempt_failed",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, attempts, lastErr)
}
