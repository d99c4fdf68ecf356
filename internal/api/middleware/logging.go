package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"taskflow-ai/internal/api/response"
	"taskflow-ai/internal/logging"
)

type contextKey string

// RequestIDKey is the context key for request ID
const RequestIDKey contextKey = "request_id"

// slowRequest is the duration above which a request is logged as slow
const slowRequest = time.Second

// LoggingMiddleware assigns request ids, propagates them as trace ids and logs
// each request with its outcome
type LoggingMiddleware struct {
	logger logging.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger logging.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &LoggingMiddleware{logger: logger.WithComponent("http")}
}

// Handler returns the logging middleware handler
func (lm *LoggingMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(response.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = logging.WithTraceID(ctx, requestID)
			r = r.WithContext(ctx)
			w.Header().Set(response.RequestIDHeader, requestID)

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			if r.URL.Path == "/health" {
				return
			}
			lm.logResponse(r, wrapper.statusCode, time.Since(start))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (lm *LoggingMiddleware) logResponse(r *http.Request, statusCode int, duration time.Duration) {
	fields := []interface{}{
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"duration_ms", duration.Milliseconds(),
	}
	ctx := r.Context()

	switch {
	case statusCode >= 500:
		lm.logger.ErrorContext(ctx, "Request failed", fields...)
	case statusCode >= 400:
		lm.logger.WarnContext(ctx, "Request rejected", fields...)
	case duration > slowRequest:
		lm.logger.WarnContext(ctx, "Slow request", fields...)
	default:
		lm.logger.InfoContext(ctx, "Request completed", fields...)
	}
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
