// Package logging provides structured logging with trace id propagation.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Logger interface for structured logging with trace support
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	// Context-aware logging with trace IDs
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})
	DebugContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ContextKey represents keys used in context for trace IDs
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
)

// LogLevel represents logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Options configures a StructuredLogger
type Options struct {
	Level   LogLevel
	JSON    bool
	Output  io.Writer
	NoColor bool
}

// StructuredLogger writes one entry per line as JSON or colored text
type StructuredLogger struct {
	level     LogLevel
	traceID   string
	component string
	useJSON   bool
	noColor   bool
	out       io.Writer
	mu        *sync.Mutex
	exit      func(int)
}

// NewLogger creates a logger writing to stdout. LOG_JSON=false switches to text.
func NewLogger(level LogLevel) Logger {
	return New(Options{
		Level:  level,
		JSON:   getEnvBool("LOG_JSON", true),
		Output: os.Stdout,
	})
}

// New creates a logger from explicit options
func New(opts Options) *StructuredLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &StructuredLogger{
		level:   opts.Level,
		useJSON: opts.JSON,
		noColor: opts.NoColor,
		out:     out,
		mu:      &sync.Mutex{},
		exit:    os.Exit,
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

func (l *StructuredLogger) clone() *StructuredLogger {
	c := *l
	return &c
}

// WithTraceID creates a new logger with a trace ID
func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	c := l.clone()
	c.traceID = traceID
	return c
}

// WithComponent creates a new logger with a component name
func (l *StructuredLogger) WithComponent(component string) Logger {
	c := l.clone()
	c.component = component
	return c
}

func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	l.log(INFO, "", msg, fields)
}

func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	l.log(WARN, "", msg, fields)
}

func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	l.log(ERROR, "", msg, fields)
}

func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	l.log(DEBUG, "", msg, fields)
}

// Fatal logs a fatal message and exits
func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.log(FATAL, "", msg, fields)
	l.exit(1)
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(INFO, GetTraceID(ctx), msg, fields)
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(WARN, GetTraceID(ctx), msg, fields)
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ERROR, GetTraceID(ctx), msg, fields)
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(DEBUG, GetTraceID(ctx), msg, fields)
}

// log builds and writes an entry. Skip 2 frames: log and the level method.
func (l *StructuredLogger) log(level LogLevel, contextTraceID, msg string, fields []interface{}) {
	if level < l.level {
		return
	}

	traceID := l.traceID
	if contextTraceID != "" {
		traceID = contextTraceID
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "unknown"
		line = 0
	} else {
		file = file[strings.LastIndex(file, "/")+1:]
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		File:      file,
		Line:      line,
		Fields:    fieldMap(fields),
	}

	var data []byte
	if l.useJSON {
		var err error
		data, err = json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
			return
		}
	} else {
		data = []byte(l.formatText(level, entry))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}

// fieldMap turns alternating key/value arguments into a map. An unpaired
// trailing value is kept under field_<index>.
func fieldMap(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			m[fmt.Sprintf("%v", fields[i])] = normalizeValue(fields[i+1])
		} else {
			m[fmt.Sprintf("field_%d", i)] = normalizeValue(fields[i])
		}
	}
	return m
}

// errors marshal to {} in JSON, so log their message instead
func normalizeValue(v interface{}) interface{} {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

var levelColors = map[LogLevel]*color.Color{
	DEBUG: color.New(color.FgCyan),
	INFO:  color.New(color.FgGreen),
	WARN:  color.New(color.FgYellow),
	ERROR: color.New(color.FgRed),
	FATAL: color.New(color.FgRed, color.Bold),
}

func (l *StructuredLogger) formatText(level LogLevel, entry LogEntry) string {
	var parts []string

	parts = append(parts, entry.Timestamp)

	levelTag := fmt.Sprintf("[%s]", entry.Level)
	if c, ok := levelColors[level]; ok && !l.noColor {
		levelTag = c.Sprint(levelTag)
	}
	parts = append(parts, levelTag)

	if entry.TraceID != "" {
		id := entry.TraceID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, "trace:"+id)
	}
	if entry.Component != "" {
		parts = append(parts, "component:"+entry.Component)
	}

	parts = append(parts, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
	}

	if entry.File != "" && entry.Line > 0 {
		parts = append(parts, fmt.Sprintf("(%s:%d)", entry.File, entry.Line))
	}

	return strings.Join(parts, " ")
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(INFO)
)

func getDefault() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Package-level functions for convenience
func Info(msg string, fields ...interface{})  { getDefault().Info(msg, fields...) }
func Warn(msg string, fields ...interface{})  { getDefault().Warn(msg, fields...) }
func Error(msg string, fields ...interface{}) { getDefault().Error(msg, fields...) }
func Debug(msg string, fields ...interface{}) { getDefault().Debug(msg, fields...) }
func Fatal(msg string, fields ...interface{}) { getDefault().Fatal(msg, fields...) }

// GenerateTraceID returns a fresh random trace id
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores traceID in ctx, generating one when empty
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id carried by ctx, if any
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithComponent returns the default logger scoped to a component
func WithComponent(component string) Logger {
	return getDefault().WithComponent(component)
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// SetDefaultLogger sets the default logger instance
func SetDefaultLogger(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
