package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mcperrors "taskflow-ai/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("qdrant: service unavailable")

const coolDown = 30 * time.Millisecond

func newTestBreaker(cfg *Config) *CircuitBreaker {
	return New("vector-store", cfg)
}

// waitHalfOpen sleeps past the open timeout
func waitHalfOpen() {
	time.Sleep(coolDown + 10*time.Millisecond)
}

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func ok(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(&Config{FailureThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail(errUnavailable)), errUnavailable)
	}
	assert.Equal(t, StateClosed, cb.State())

	// a success resets the count
	require.NoError(t, cb.Execute(ctx, ok))
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail(errUnavailable))
	}
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(ctx, fail(errUnavailable))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, mcperrors.ErrorCategoryResource, mcperrors.CategoryOf(err))
	assert.False(t, mcperrors.IsRetryable(err))
	assert.Equal(t, int64(1), cb.Stats().Rejections)
}

func TestCircuitBreaker_IgnoresPermanentErrors(t *testing.T) {
	cb := newTestBreaker(&Config{FailureThreshold: 1, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, fail(mcperrors.NewValidationError("title", "title is required")))
		assert.True(t, mcperrors.IsValidation(err))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(&Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: coolDown})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errUnavailable))
	require.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)

	waitHalfOpen()
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(&Config{FailureThreshold: 1, Timeout: coolDown})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errUnavailable))
	waitHalfOpen()

	assert.ErrorIs(t, cb.Execute(ctx, fail(errUnavailable)), errUnavailable)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)
}

func TestCircuitBreaker_SingleTrialCall(t *testing.T) {
	cb := newTestBreaker(&Config{FailureThreshold: 1, Timeout: coolDown})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errUnavailable))
	waitHalfOpen()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_StateChangeCallbackAndReset(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	cb := newTestBreaker(&Config{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	_ = cb.Execute(context.Background(), fail(errUnavailable))
	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"vector-store:closed->open", "vector-store:open->closed"}, transitions)
	assert.Equal(t, "vector-store", cb.Stats().Name)
	assert.Equal(t, "closed", cb.Stats().State)
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := New("llm", nil)
	assert.Equal(t, "llm", cb.Name())
	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 1, cb.config.SuccessThreshold)
	assert.Equal(t, "unknown", State(42).String())
}
