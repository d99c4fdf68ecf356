package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancedError_Message(t *testing.T) {
	err := WrapStorageError(stderrors.New("collection missing"), "query")
	assert.Equal(t, "[storage:query] collection missing", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, WrapStorageError(nil, "x"))
	assert.NoError(t, WrapAIServiceError(nil, "gpt-4o", "x"))
	assert.NoError(t, WrapEmbeddingError(nil, "m", "x"))
	assert.NoError(t, WrapDatabaseError(nil, "x"))
	assert.NoError(t, WrapValidationError(nil, "f"))
	assert.NoError(t, WrapTimeoutError(nil, "x", time.Second))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  ErrorCategory
		retryable bool
	}{
		{"rate limit", stderrors.New("error, status code: 429, message: Rate limit reached"), ErrorCategoryRateLimit, true},
		{"quota", stderrors.New("insufficient_quota"), ErrorCategoryRateLimit, true},
		{"refused", stderrors.New("dial tcp: connection refused"), ErrorCategoryRetryable, true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorCategoryTimeout, true},
		{"permanent", stderrors.New("invalid api key"), ErrorCategoryPermanent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapAIServiceError(tt.err, "gpt-4o", "chat")
			assert.Equal(t, tt.category, CategoryOf(wrapped))
			assert.Equal(t, tt.retryable, IsRetryable(wrapped))
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

func TestValidationHelpers(t *testing.T) {
	err := NewValidationError("k", "must be positive, got %d", -1)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.True(t, IsValidation(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsValidation(stderrors.New("plain")))

	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, "k", enhanced.Context.Metadata["field"])
	assert.Contains(t, err.Error(), "must be positive, got -1")
}

func TestCategoryOfNil(t *testing.T) {
	assert.Equal(t, ErrorCategory(""), CategoryOf(nil))
	assert.False(t, IsRetryable(nil))
}

func TestTimeoutMetadata(t *testing.T) {
	err := WrapTimeoutError(stderrors.New("slow"), "suggest", 3*time.Second)
	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, "3s", enhanced.Context.Metadata["timeout_duration"])
	assert.True(t, enhanced.IsRetryable())
}
