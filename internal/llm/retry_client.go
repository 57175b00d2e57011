package llm

import (
	"context"
	"time"

	alexerrors "govai/internal/errors"
	"govai/internal/logging"
)

// RetryClient wraps a client with retry and circuit breaker logic.
type RetryClient struct {
	underlying     Client
	retryConfig    alexerrors.RetryConfig
	circuitBreaker *alexerrors.CircuitBreaker
	logger         logging.Logger
}

var _ StreamingClient = (*RetryClient)(nil)

// NewRetryClient wraps client. A nil breaker disables circuit breaking.
func NewRetryClient(client Client, retryConfig alexerrors.RetryConfig, circuitBreaker *alexerrors.CircuitBreaker) *RetryClient {
	return &RetryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logging.NewComponentLogger("llm-retry"),
	}
}

// Complete executes a completion, retrying transient failures.
func (c *RetryClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	startTime := time.Now()
	resp, err := alexerrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*Completion, error) {
		return c.guard(ctx, func(ctx context.Context) (*Completion, error) {
			return c.underlying.Complete(ctx, req)
		})
	}, c.logger)
	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", time.Since(startTime), err)
		return nil, err
	}
	return resp, nil
}

// Stream proxies to the underlying streaming client. An attempt that has
// already delivered a delta is never retried, so callers do not see
// duplicated text. Clients without streaming fall back to Complete, with
// the whole answer delivered as one delta.
func (c *RetryClient) Stream(ctx context.Context, req Request, callbacks Callbacks) (*Completion, error) {
	streaming, ok := c.underlying.(StreamingClient)
	if !ok {
		resp, err := c.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if callbacks.OnDelta != nil && resp.Content != "" {
			callbacks.OnDelta(resp.Content)
		}
		return resp, nil
	}

	delivered := false
	wrapped := callbacks
	wrapped.OnDelta = func(delta string) {
		delivered = true
		if callbacks.OnDelta != nil {
			callbacks.OnDelta(delta)
		}
	}

	cfg := c.retryConfig
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = alexerrors.IsTransient
	}
	cfg.ShouldRetry = func(err error) bool {
		return !delivered && shouldRetry(err)
	}

	startTime := time.Now()
	resp, err := alexerrors.RetryWithResultAndLog(ctx, cfg, func(ctx context.Context) (*Completion, error) {
		return c.guard(ctx, func(ctx context.Context) (*Completion, error) {
			return streaming.Stream(ctx, req, wrapped)
		})
	}, c.logger)
	if err != nil {
		c.logger.Warn("LLM streaming request failed (took %v, partial=%t): %v", time.Since(startTime), delivered, err)
		return nil, err
	}
	return resp, nil
}

func (c *RetryClient) guard(ctx context.Context, fn func(ctx context.Context) (*Completion, error)) (*Completion, error) {
	if c.circuitBreaker == nil {
		return fn(ctx)
	}
	return alexerrors.ExecuteFunc(c.circuitBreaker, ctx, fn)
}
