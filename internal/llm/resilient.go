package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/jonathan/jobchat/internal/llm")

// RetryPolicy bounds every completion call
type RetryPolicy struct {
	Timeout    time.Duration // per-attempt deadline
	MaxRetries int           // additional attempts after the first
	Backoff    time.Duration // initial delay, doubled per retry
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}
}

// ResilientClient decorates a Client with per-attempt timeouts, bounded retries and tracing.
type ResilientClient struct {
	inner  Client
	policy RetryPolicy
	log    *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithResilience wraps inner with the given policy
func WithResilience(inner Client, policy RetryPolicy, log *zap.Logger) *ResilientClient {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultRetryPolicy().Timeout
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &ResilientClient{
		inner:  inner,
		policy: policy,
		log:    log,
		sleep:  sleepContext,
	}
}

// Complete calls the wrapped client, retrying retryable failures
func (c *ResilientClient) Complete(ctx context.Context, req Request) (string, error) {
	model := c.inner.GetModel(req.Tier)
	ctx, span := tracer.Start(ctx, "llm.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.model", model),
		attribute.Int("ai.history_len", len(req.History)),
		attribute.Float64("ai.temperature", float64(req.Temperature)),
	)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		attempts++
		start := time.Now()

		text, err := c.attempt(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("ai.attempts", attempts))
			c.log.Debug("completion call succeeded",
				zap.String("ai_model", model),
				zap.Int("attempt", attempts),
				zap.Duration("duration", time.Since(start)),
			)
			return text, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == c.policy.MaxRetries {
			break
		}

		delay := c.policy.Backoff << attempt
		c.log.Warn("completion call failed, retrying",
			zap.String("ai_model", model),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	callErr := &CallError{Model: model, Attempts: attempts, Cause: lastErr}
	span.RecordError(callErr)
	span.SetStatus(codes.Error, "completion failed")
	c.log.Error("completion call failed",
		zap.String("ai_model", model),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return "", callErr
}

func (c *ResilientClient) attempt(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	text, err := c.inner.Complete(callCtx, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &TimeoutError{Timeout: c.policy.Timeout, Cause: err}
	}
	return text, err
}

// GetModel returns the wrapped client's model for a tier
func (c *ResilientClient) GetModel(tier ModelTier) string {
	return c.inner.GetModel(tier)
}

// Close closes the wrapped client
func (c *ResilientClient) Close() error {
	return c.inner.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
