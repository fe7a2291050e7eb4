package obtrack

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-logr/logr"
)

// LogLevel defines the severity level for logging
type LogLevel int

const (
	// LogLevelDebug enables all log messages including detailed debugging
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables informational messages and above
	LogLevelInfo

	// LogLevelWarn enables warning messages and above
	LogLevelWarn

	// LogLevelError enables only error messages
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the interface for tracker logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F is a convenience function to create a logging field
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger implements Logger using Go's standard log package
type DefaultLogger struct {
	level  LogLevel
	logger *log.Logger
	fields []Field
}

// NewDefaultLogger creates a new logger writing to stdout with the specified level
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewWriterLogger(os.Stdout, level)
}

// NewWriterLogger creates a DefaultLogger writing to w
func NewWriterLogger(w io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		logger: log.New(w, "[OBTRACK] ", log.LstdFlags|log.Lmicroseconds),
		fields: make([]Field, 0),
	}
}

// Debug logs a debug message
func (dl *DefaultLogger) Debug(msg string, fields ...Field) {
	if dl.level <= LogLevelDebug {
		dl.log("DEBUG", msg, fields...)
	}
}

// Info logs an info message
func (dl *DefaultLogger) Info(msg string, fields ...Field) {
	if dl.level <= LogLevelInfo {
		dl.log("INFO", msg, fields...)
	}
}

// Warn logs a warning message
func (dl *DefaultLogger) Warn(msg string, fields ...Field) {
	if dl.level <= LogLevelWarn {
		dl.log("WARN", msg, fields...)
	}
}

// Error logs an error message
func (dl *DefaultLogger) Error(msg string, fields ...Field) {
	if dl.level <= LogLevelError {
		dl.log("ERROR", msg, fields...)
	}
}

// With creates a new logger with additional fields
func (dl *DefaultLogger) With(fields ...Field) Logger {
	return &DefaultLogger{
		level:  dl.level,
		logger: dl.logger,
		fields: joinFields(dl.fields, fields),
	}
}

func (dl *DefaultLogger) log(level, msg string, fields ...Field) {
	allFields := joinFields(dl.fields, fields)

	var fieldStrings []string
	for _, field := range allFields {
		fieldStrings = append(fieldStrings, fmt.Sprintf("%s=%v", field.Key, field.Value))
	}

	var logMsg string
	if len(fieldStrings) > 0 {
		logMsg = fmt.Sprintf("[%s] %s | %s", level, msg, strings.Join(fieldStrings, " "))
	} else {
		logMsg = fmt.Sprintf("[%s] %s", level, msg)
	}

	dl.logger.Println(logMsg)
}

func joinFields(a, b []Field) []Field {
	joined := make([]Field, len(a)+len(b))
	copy(joined, a)
	copy(joined[len(a):], b)
	return joined
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards all messages
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (nol *NoOpLogger) Debug(string, ...Field) {}
func (nol *NoOpLogger) Info(string, ...Field)  {}
func (nol *NoOpLogger) Warn(string, ...Field)  {}
func (nol *NoOpLogger) Error(string, ...Field) {}
func (nol *NoOpLogger) With(...Field) Logger   { return nol }

// LogrLogger adapts a logr.Logger to Logger.
// Debug maps to V(1); Warn is logged at info level with level=warn.
type LogrLogger struct {
	logger logr.Logger
}

// NewLogrLogger wraps a logr.Logger, e.g. one built with logr.FromSlogHandler
func NewLogrLogger(logger logr.Logger) *LogrLogger {
	return &LogrLogger{logger: logger}
}

func (l *LogrLogger) Debug(msg string, fields ...Field) {
	l.logger.V(1).Info(msg, keysAndValues(fields)...)
}

func (l *LogrLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, keysAndValues(fields)...)
}

func (l *LogrLogger) Warn(msg string, fields ...Field) {
	l.logger.Info(msg, append([]any{"level", "warn"}, keysAndValues(fields)...)...)
}

// Error logs at error level. A field with key "error" holding an error
// becomes the logr error argument.
func (l *LogrLogger) Error(msg string, fields ...Field) {
	var err error
	rest := make([]Field, 0, len(fields))
	for _, f := range fields {
		if e, ok := f.Value.(error); ok && f.Key == "error" && err == nil {
			err = e
			continue
		}
		rest = append(rest, f)
	}
	l.logger.Error(err, msg, keysAndValues(rest)...)
}

func (l *LogrLogger) With(fields ...Field) Logger {
	return &LogrLogger{logger: l.logger.WithValues(keysAndValues(fields)...)}
}

func keysAndValues(fields []Field) []any {
	kvs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kvs = append(kvs, f.Key, f.Value)
	}
	return kvs
}

// LoggingConfig defines which events CreateLoggingHooks logs
type LoggingConfig struct {
	Logger Logger

	// LogCalls logs every instrumented call with its new count (debug)
	LogCalls bool

	// LogCallErrors logs failed instrumented calls (warn)
	LogCallErrors bool

	// LogHits logs resource cache hits (debug)
	LogHits bool

	// LogMisses logs resource cache misses (info)
	LogMisses bool

	// LogFetchErrors logs failed fetches (error)
	LogFetchErrors bool
}

// NewDefaultLoggingConfig creates a logging configuration with every event enabled
func NewDefaultLoggingConfig(level LogLevel) *LoggingConfig {
	return &LoggingConfig{
		Logger:         NewDefaultLogger(level),
		LogCalls:       true,
		LogCallErrors:  true,
		LogHits:        true,
		LogMisses:      true,
		LogFetchErrors: true,
	}
}

// CreateLoggingHooks creates a set of hooks that log tracker events
func CreateLoggingHooks(config *LoggingConfig) *Hooks {
	hooks := &Hooks{}
	if config == nil || config.Logger == nil {
		return hooks
	}

	logger := config.Logger

	if config.LogCalls {
		hooks.AddOnCall(func(_ context.Context, id string, count int64) {
			logger.Debug("Call recorded", F("operation", id), F("count", count), F("event", "call"))
		})
	}

	if config.LogCallErrors {
		hooks.AddOnCallError(func(_ context.Context, id string, err error) {
			logger.Warn("Call failed", F("operation", id), F("error", err), F("event", "call_error"))
		})
	}

	if config.LogHits {
		hooks.AddOnHit(func(_ context.Context, resource string, accesses int64) {
			logger.Debug("Resource hit", F("resource", resource), F("accesses", accesses), F("event", "resource_hit"))
		})
	}

	if config.LogMisses {
		hooks.AddOnMiss(func(_ context.Context, resource string, accesses int64) {
			logger.Info("Resource miss", F("resource", resource), F("accesses", accesses), F("event", "resource_miss"))
		})
	}

	if config.LogFetchErrors {
		hooks.AddOnFetchError(func(_ context.Context, resource string, err error) {
			logger.Error("Fetch failed", F("resource", resource), F("error", err), F("event", "fetch_error"))
		})
	}

	return hooks
}

// LoggingHookBuilder provides a fluent interface for creating logging hooks
type LoggingHookBuilder struct {
	config *LoggingConfig
}

// NewLoggingHookBuilder creates a new logging hook builder with nothing enabled
func NewLoggingHookBuilder() *LoggingHookBuilder {
	return &LoggingHookBuilder{
		config: &LoggingConfig{Logger: NewNoOpLogger()},
	}
}

// WithLogger sets the logger to use
func (lhb *LoggingHookBuilder) WithLogger(logger Logger) *LoggingHookBuilder {
	lhb.config.Logger = logger
	return lhb
}

// WithLevel sets the logging level (creates a default logger)
func (lhb *LoggingHookBuilder) WithLevel(level LogLevel) *LoggingHookBuilder {
	lhb.config.Logger = NewDefaultLogger(level)
	return lhb
}

// EnableCallLogging enables logging of calls and call failures
func (lhb *LoggingHookBuilder) EnableCallLogging() *LoggingHookBuilder {
	lhb.config.LogCalls = true
	lhb.config.LogCallErrors = true
	return lhb
}

// EnableResourceLogging enables logging of hits, misses and fetch failures
func (lhb *LoggingHookBuilder) EnableResourceLogging() *LoggingHookBuilder {
	lhb.config.LogHits = true
	lhb.config.LogMisses = true
	lhb.config.LogFetchErrors = true
	return lhb
}

// EnableAllLogging enables every event
func (lhb *LoggingHookBuilder) EnableAllLogging() *LoggingHookBuilder {
	return lhb.EnableCallLogging().EnableResourceLogging()
}

// Build creates the hooks configured by this builder
func (lhb *LoggingHookBuilder) Build() *Hooks {
	return CreateLoggingHooks(lhb.config)
}
