// Package ratelimit provides the token bucket shared by outbound API clients.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket. Capacity tokens are available up front and one
// token is added every refill interval. A nil *Limiter never limits.
type Limiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a limiter with the given capacity and refill interval
func New(capacity int, refillRate time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = 60
	}
	if refillRate <= 0 {
		refillRate = time.Second
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(refillRate), capacity),
		now:     time.Now,
	}
}

// PerMinute creates a limiter allowing rpm requests per minute with a burst
// of rpm. Non-positive rpm disables limiting and returns nil.
func PerMinute(rpm int) *Limiter {
	if rpm <= 0 {
		return nil
	}
	return New(rpm, time.Minute/time.Duration(rpm))
}

// Allow takes a token if one is available
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.AllowN(l.now(), 1)
}

// Wait blocks until a token is available or ctx is done. When the next token
// would arrive after ctx's deadline it fails straight away with
// context.DeadlineExceeded.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// Available returns the number of whole tokens in the bucket
func (l *Limiter) Available() int {
	if l == nil {
		return 0
	}
	return int(l.limiter.TokensAt(l.now()))
}
