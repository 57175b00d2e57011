package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"govai/internal/logging"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffExponential doubles BaseDelay on each attempt.
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffLinear waits BaseDelay multiplied by the attempt number.
	BackoffLinear BackoffStrategy = "linear"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Retries after the first call (default: 3)
	BaseDelay    time.Duration // Base delay for backoff (default: 1s)
	MaxDelay     time.Duration // Maximum delay between retries (default: 30s)
	JitterFactor float64       // Jitter factor for randomization (default: 0.25 = ±25%)
	Strategy     BackoffStrategy

	// ShouldRetry overrides IsTransient as the retry predicate.
	ShouldRetry func(error) bool
	// OnAttempt observes every attempt, numbered from 1.
	OnAttempt func(attempt int, err error)
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
		Strategy:     BackoffExponential,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry executes a function with backoff retry logic
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	_, err := RetryWithResultAndLog(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}

// RetryWithResult executes a function that returns a result with retry logic
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil)
}

// RetryWithResultAndLog executes a function that returns a result with retry logic and custom logger
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	var lastErr error
	var zeroValue T

	for attempt := 0; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled, stopping retries")
			return zeroValue, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			logger.Debug("Retrying (attempt %d/%d)", attempt+1, maxAttempts+1)
		}

		result, err := fn(ctx)
		if config.OnAttempt != nil {
			config.OnAttempt(attempt+1, err)
		}

		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d failed: %v", attempt+1, err)

		if !shouldRetry(err) {
			logger.Debug("Error is not retryable, stopping retries")
			return zeroValue, err
		}

		if attempt == maxAttempts {
			logger.Warn("Max retries (%d) exhausted", maxAttempts+1)
			break
		}

		delay := calculateBackoff(attempt, config)
		logger.Debug("Waiting %v before next retry", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("Context cancelled during backoff")
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zeroValue, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns the delay after the given zero-based attempt.
//
// exponential: attempt 0 -> base, 1 -> 2*base, 2 -> 4*base
// linear:      attempt 0 -> base, 1 -> 2*base, 2 -> 3*base
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	var delay time.Duration
	switch config.Strategy {
	case BackoffLinear:
		delay = config.BaseDelay * time.Duration(attempt+1)
	default:
		multiplier := math.Pow(2, float64(attempt))
		delay = time.Duration(float64(config.BaseDelay) * multiplier)
	}

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		jitterAmount := (rand.Float64()*2 - 1) * jitter
		delay = time.Duration(float64(delay) + jitterAmount)

		if delay < 0 {
			delay = config.BaseDelay
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return delay
}
