package ai

import (
	"context"

	"taskflow-ai/internal/circuitbreaker"
	"taskflow-ai/internal/retry"
)

// ResilientClient retries transient provider failures behind a circuit
// breaker. Validation errors and an open circuit are returned immediately.
type ResilientClient struct {
	inner   AIClient
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewResilientClient wraps inner. A nil retrier or breaker disables that layer.
func NewResilientClient(inner AIClient, retrier *retry.Retrier, breaker *circuitbreaker.CircuitBreaker) *ResilientClient {
	if retrier == nil {
		retrier = retry.New(&retry.Config{MaxAttempts: 1})
	}
	return &ResilientClient{inner: inner, retrier: retrier, breaker: breaker}
}

// Model implements AIClient
func (c *ResilientClient) Model() string { return c.inner.Model() }

// Complete implements AIClient
func (c *ResilientClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		call := func(ctx context.Context) error {
			var err error
			resp, err = c.inner.Complete(ctx, request)
			return err
		}
		if c.breaker == nil {
			return call(ctx)
		}
		return c.breaker.Execute(ctx, call)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
