package storage

import (
	"context"

	"taskflow-ai/internal/circuitbreaker"
	"taskflow-ai/internal/retry"
)

// ResilientStore retries transient backend failures and stops calling a
// backend that keeps failing. Each attempt passes through the breaker, so an
// open circuit ends the retry loop at once.
type ResilientStore struct {
	inner   VectorStore
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewResilientStore wraps inner. A nil retrier or breaker disables that layer.
func NewResilientStore(inner VectorStore, retrier *retry.Retrier, breaker *circuitbreaker.CircuitBreaker) *ResilientStore {
	if retrier == nil {
		retrier = retry.New(&retry.Config{MaxAttempts: 1})
	}
	return &ResilientStore{inner: inner, retrier: retrier, breaker: breaker}
}

func (s *ResilientStore) call(ctx context.Context, op func(context.Context) error) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		if s.breaker == nil {
			return op(ctx)
		}
		return s.breaker.Execute(ctx, op)
	})
}

// Initialize is not retried; startup failures surface immediately
func (s *ResilientStore) Initialize(ctx context.Context) error {
	return s.inner.Initialize(ctx)
}

func (s *ResilientStore) Upsert(ctx context.Context, record Record) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.inner.Upsert(ctx, record)
	})
}

func (s *ResilientStore) Search(ctx context.Context, vector []float32, ownerID int64, k int) ([]SearchHit, error) {
	var hits []SearchHit
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		hits, err = s.inner.Search(ctx, vector, ownerID, k)
		return err
	})
	return hits, err
}

func (s *ResilientStore) Delete(ctx context.Context, taskID int64) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.inner.Delete(ctx, taskID)
	})
}

// HealthCheck bypasses retries and the breaker so it reports the backend's
// real state
func (s *ResilientStore) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}

// BreakerStats reports the circuit state, if a breaker is configured
func (s *ResilientStore) BreakerStats() (circuitbreaker.Stats, bool) {
	if s.breaker == nil {
		return circuitbreaker.Stats{}, false
	}
	return s.breaker.Stats(), true
}

func (s *ResilientStore) Close() error {
	return s.inner.Close()
}
