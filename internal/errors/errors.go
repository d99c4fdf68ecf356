// Package errors classifies failures so callers can decide between
// retrying, degrading and surfacing them.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCategory classifies errors for handling strategies
type ErrorCategory string

const (
	ErrorCategoryRetryable  ErrorCategory = "retryable"
	ErrorCategoryPermanent  ErrorCategory = "permanent"
	ErrorCategoryResource   ErrorCategory = "resource"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryRateLimit  ErrorCategory = "rate_limit"
	ErrorCategoryValidation ErrorCategory = "validation"
)

// ErrorContext provides additional context for debugging
type ErrorContext struct {
	Operation string                 `json:"operation"`
	Component string                 `json:"component"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Category  ErrorCategory          `json:"category"`
	Retryable bool                   `json:"retryable"`
}

// EnhancedError wraps an error with the component and operation that failed
type EnhancedError struct {
	Err     error        `json:"error"`
	Context ErrorContext `json:"context"`
}

func (e *EnhancedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Context.Component, e.Context.Operation, e.Err.Error())
}

func (e *EnhancedError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if error can be retried
func (e *EnhancedError) IsRetryable() bool {
	return e.Context.Retryable
}

// GetCategory returns error category
func (e *EnhancedError) GetCategory() ErrorCategory {
	return e.Context.Category
}

// NewEnhancedError creates a new enhanced error with context
func NewEnhancedError(err error, component, operation string, category ErrorCategory) *EnhancedError {
	return &EnhancedError{
		Err: err,
		Context: ErrorContext{
			Operation: operation,
			Component: component,
			Category:  category,
			Retryable: category == ErrorCategoryRetryable || category == ErrorCategoryTimeout || category == ErrorCategoryRateLimit,
			Timestamp: time.Now(),
		},
	}
}

// WithMetadata adds metadata to error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// WrapDatabaseError wraps task store errors
func WrapDatabaseError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "database", operation, classify(err))
}

// WrapAIServiceError wraps language model errors
func WrapAIServiceError(err error, model, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "ai_service", operation, classify(err)).WithMetadata("model", model)
}

// WrapEmbeddingError wraps embedding provider errors
func WrapEmbeddingError(err error, model, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "embeddings", operation, classify(err)).WithMetadata("model", model)
}

// WrapStorageError wraps vector storage errors
func WrapStorageError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "storage", operation, classify(err))
}

// WrapValidationError wraps validation errors
func WrapValidationError(err error, field string) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "validation", "field_validation", ErrorCategoryValidation).WithMetadata("field", field)
}

// NewValidationError builds a validation error for field from a message
func NewValidationError(field, format string, args ...interface{}) error {
	return WrapValidationError(fmt.Errorf(format, args...), field)
}

// WrapTimeoutError wraps timeout errors
func WrapTimeoutError(err error, operation string, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	return NewEnhancedError(err, "timeout", operation, ErrorCategoryTimeout).WithMetadata("timeout_duration", timeout.String())
}

// CategoryOf returns the category of the outermost EnhancedError in the
// chain, or a category inferred from the message.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var enhanced *EnhancedError
	if stderrors.As(err, &enhanced) {
		return enhanced.GetCategory()
	}
	return classify(err)
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return CategoryOf(err) == ErrorCategoryValidation
}

// IsRetryable reports whether err is worth retrying
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case ErrorCategoryRetryable, ErrorCategoryTimeout, ErrorCategoryRateLimit:
		return true
	default:
		return false
	}
}

func classify(err error) ErrorCategory {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case isRateLimitError(err):
		return ErrorCategoryRateLimit
	case isTemporaryError(err):
		return ErrorCategoryRetryable
	default:
		return ErrorCategoryPermanent
	}
}

func isTemporaryError(err error) bool {
	return matchesAny(err, []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"unavailable",
		"deadline exceeded",
		"eof",
	})
}

func isRateLimitError(err error) bool {
	return matchesAny(err, []string{
		"rate limit",
		"quota exceeded",
		"insufficient_quota",
		"too many requests",
		"429",
	})
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
