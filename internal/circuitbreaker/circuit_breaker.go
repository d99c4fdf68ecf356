// Package circuitbreaker stops calling a failing backend for a cool-down
// period so requests fail fast instead of queueing on timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	mcperrors "taskflow-ai/internal/errors"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// ErrOpen is wrapped in the resource-category error returned while the
// circuit rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures that open the circuit
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it again.
	// It also caps the trial calls let through while half-open.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a trial call
	Timeout time.Duration
	// IsFailure decides which errors count. Nil counts retryable errors only,
	// so validation failures never open the circuit.
	IsFailure func(error) bool
	// OnStateChange runs while the breaker holds its lock and must not call
	// back into the breaker
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker guards one named backend
type CircuitBreaker struct {
	name   string
	config Config

	inner      atomic.Pointer[gobreaker.CircuitBreaker]
	rejections atomic.Int64
}

// New creates a circuit breaker. A nil config uses DefaultConfig.
func New(name string, config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	c := *config
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 1
	}
	if c.SuccessThreshold < 1 {
		c.SuccessThreshold = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = mcperrors.IsRetryable
	}
	cb := &CircuitBreaker{name: name, config: c}
	cb.inner.Store(cb.newInner())
	return cb
}

func (cb *CircuitBreaker) newInner() *gobreaker.CircuitBreaker {
	threshold := uint32(cb.config.FailureThreshold) // #nosec G115 -- at least 1
	st := gobreaker.Settings{
		Name:        cb.name,
		MaxRequests: uint32(cb.config.SuccessThreshold), // #nosec G115 -- at least 1
		Timeout:     cb.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !cb.config.IsFailure(err)
		},
	}
	if cb.config.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			cb.config.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Name returns the guarded backend's name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the circuit is open. While half-open only
// SuccessThreshold trial calls are let through.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := cb.inner.Load().Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejections.Add(1)
		return mcperrors.NewEnhancedError(ErrOpen, "circuitbreaker", cb.name, mcperrors.ErrorCategoryResource)
	}
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.inner.Load().State())
}

// Stats holds circuit breaker statistics
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Rejections          int64  `json:"rejections"`
}

// Stats returns a snapshot for health reporting
func (cb *CircuitBreaker) Stats() Stats {
	inner := cb.inner.Load()
	return Stats{
		Name:                cb.name,
		State:               fromGobreaker(inner.State()).String(),
		ConsecutiveFailures: int(inner.Counts().ConsecutiveFailures),
		Rejections:          cb.rejections.Load(),
	}
}

// Reset closes the circuit. Calls already running report to the breaker
// they started on.
func (cb *CircuitBreaker) Reset() {
	old := cb.inner.Swap(cb.newInner())
	if from := fromGobreaker(old.State()); from != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, StateClosed)
	}
}
