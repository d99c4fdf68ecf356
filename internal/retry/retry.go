// Package retry runs operations again with exponential backoff while their
// errors are classified as retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	mcperrors "taskflow-ai/internal/errors"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int              // total attempts including the first, at least 1
	InitialDelay    time.Duration    // delay before the second attempt
	MaxDelay        time.Duration    // cap on any single delay
	Multiplier      float64          // backoff multiplier
	RandomizeFactor float64          // jitter factor (0-1)
	RetryIf         func(error) bool // nil means mcperrors.IsRetryable
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
	}
}

// Operation represents a retryable operation
type Operation func(ctx context.Context) error

// Retrier provides retry functionality
type Retrier struct {
	config Config
}

// New creates a new retrier. A nil config uses DefaultConfig.
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	c := *config
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.RandomizeFactor < 0 {
		c.RandomizeFactor = 0
	} else if c.RandomizeFactor > 1 {
		c.RandomizeFactor = 1
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.InitialDelay
	}
	if c.RetryIf == nil {
		c.RetryIf = mcperrors.IsRetryable
	}
	return &Retrier{config: c}
}

// MaxAttempts reports the attempt budget
func (r *Retrier) MaxAttempts() int {
	return r.config.MaxAttempts
}

// policy builds a fresh backoff schedule. Elapsed time is not capped; the
// attempt budget and ctx bound the loop.
func (r *Retrier) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.config.InitialDelay),
		backoff.WithMaxInterval(r.config.MaxDelay),
		backoff.WithMultiplier(r.config.Multiplier),
		backoff.WithRandomizationFactor(r.config.RandomizeFactor),
		backoff.WithMaxElapsedTime(0),
	)
	// #nosec G115 -- MaxAttempts is at least 1
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.config.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable error, the attempt
// budget is spent, or ctx is done. It returns the last error.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := 0
	var lastErr error
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		lastErr = op(ctx)
		if lastErr != nil && !r.config.RetryIf(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, r.policy(ctx))

	if err != nil && lastErr != nil && !errors.Is(lastErr, err) && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w (after %d attempts: %v)", err, attempts, lastErr)
	}
	return err
}
