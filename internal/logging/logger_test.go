package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level LogLevel, asJSON bool) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Options{Level: level, JSON: asJSON, Output: buf, NoColor: true}), buf
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLogger_JSON(t *testing.T) {
	logger, buf := newTestLogger(DEBUG, true)

	logger.WithComponent("suggest").Info("suggestion ready", "owner_id", 7, "hits", 3)

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "suggestion ready", e.Message)
	assert.Equal(t, "suggest", e.Component)
	assert.Equal(t, "logger_test.go", e.File)
	assert.Equal(t, float64(7), e.Fields["owner_id"])
	assert.Equal(t, float64(3), e.Fields["hits"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(WARN, true)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestStructuredLogger_ContextTraceID(t *testing.T) {
	logger, buf := newTestLogger(INFO, true)
	scoped := logger.WithTraceID("static-trace")

	ctx := WithTraceID(context.Background(), "ctx-trace")
	scoped.InfoContext(ctx, "from context")
	scoped.Info("from logger")

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "ctx-trace", entries[0].TraceID)
	assert.Equal(t, "static-trace", entries[1].TraceID)
}

func TestStructuredLogger_ErrorFieldsAndOddArgs(t *testing.T) {
	logger, buf := newTestLogger(INFO, true)

	logger.Error("call failed", "error", errors.New("boom"), "dangling")

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Fields["error"])
	assert.Equal(t, "dangling", entries[0].Fields["field_2"])
}

func TestStructuredLogger_Text(t *testing.T) {
	logger, buf := newTestLogger(INFO, false)

	logger.WithComponent("index").WithTraceID("0123456789abcdef").Warn("skipped", "task_id", 4, "a", "b")

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "trace:01234567")
	assert.Contains(t, line, "component:index")
	// fields are sorted by key
	assert.Contains(t, line, "skipped a=b task_id=4")
}

func TestStructuredLogger_FatalExits(t *testing.T) {
	logger, buf := newTestLogger(INFO, true)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal("cannot start")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"fatal":   FATAL,
		"verbose": INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestTraceIDHelpers(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NewNoOpLogger()
	assert.NotPanics(t, func() {
		l.WithComponent("x").WithTraceID("y").Fatal("ignored")
		l.InfoContext(context.Background(), "ignored")
	})
}
