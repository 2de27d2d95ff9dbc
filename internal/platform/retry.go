package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig returns sensible defaults for retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      15 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Retryer handles retry logic with exponential backoff. Only errors the
// taxonomy classifies as retryable (throttling, server-side failures) are
// retried; auth and not-found errors surface immediately.
type Retryer struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetryer creates a new retryer
func NewRetryer(config RetryConfig, logger *slog.Logger) *Retryer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{config: config, logger: logger}
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context) error

// Do executes a function with retry logic
func (r *Retryer) Do(ctx context.Context, operation string, fn RetryFunc) error {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					"operation", operation,
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			r.logger.Debug("non-retryable error",
				"operation", operation,
				"attempt", attempt,
				"error", err)
			return err
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		r.logger.Info("retryable error, backing off",
			"operation", operation,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*r.config.BackoffMultiple), r.config.MaxBackoff)
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w",
		operation, r.config.MaxAttempts, lastErr)
}

// DoWithRetry executes a function that returns a value with retry logic
func DoWithRetry[T any](
	ctx context.Context,
	retryer *Retryer,
	operation string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var result T

	err := retryer.Do(ctx, operation, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})

	return result, err
}
