// Package handlers provides the HTTP request handlers of the AI service.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"taskflow-ai/internal/api/response"
)

// Health check statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker is a dependency the service cannot work without
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler provides health check functionality
type HealthHandler struct {
	version   string
	startTime time.Time
	checkers  map[string]HealthChecker
}

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string           `json:"status"`
	Server    string           `json:"server"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	System    SystemInfo       `json:"system"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo represents system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemoryMB     uint64 `json:"memory_mb"`
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(version string, checkers map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// Handle processes health check requests
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    StatusHealthy,
		Server:    "taskflow-ai",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]Check, len(h.checkers)),
		System:    systemInfo(),
	}

	for name, checker := range h.checkers {
		check := runCheck(ctx, checker)
		if check.Status != StatusHealthy {
			status.Status = StatusUnhealthy
		}
		status.Checks[name] = check
	}

	statusCode := http.StatusOK
	if status.Status != StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	response.WriteJSON(w, statusCode, status)
}

func runCheck(ctx context.Context, checker HealthChecker) Check {
	start := time.Now()
	err := checker.HealthCheck(ctx)
	latency := time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return Check{Status: StatusHealthy, Latency: latency}
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemoryMB:     m.Alloc / 1024 / 1024,
	}
}
