package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger provides structured logging capabilities
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// WithFields returns a new logger with structured fields
	WithFields(fields map[string]interface{}) Logger

	// WithContext returns a new logger with context values
	// Extracts the run ID from the context automatically
	WithContext(ctx context.Context) Logger
}

// LoggerConfig configures logger behavior
type LoggerConfig struct {
	// JSONOutput enables JSON structured output
	JSONOutput bool `yaml:"json" json:"json" mapstructure:"json"`
	// Level sets the minimum log level (DEBUG, INFO, ERROR)
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// File sends every level to a rotating log file instead of stdout/stderr
	File string `yaml:"file" json:"file" mapstructure:"file"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `yaml:"max-size-mb" json:"max_size_mb" mapstructure:"max-size-mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `yaml:"max-backups" json:"max_backups" mapstructure:"max-backups"`

	// Output overrides every destination. Used by tests.
	Output io.Writer `yaml:"-" json:"-" mapstructure:"-"`
}

// defaultLogger implements Logger using Go's standard log package
type defaultLogger struct {
	errorLogger *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	config      LoggerConfig
	fields      map[string]interface{}
	closer      io.Closer
}

// NewDefaultLogger creates a new default logger implementation
func NewDefaultLogger() Logger {
	return NewLogger(LoggerConfig{
		JSONOutput: false,
		Level:      "DEBUG",
	})
}

// NewJSONLogger creates a logger with JSON output enabled
func NewJSONLogger() Logger {
	return NewLogger(LoggerConfig{
		JSONOutput: true,
		Level:      "DEBUG",
	})
}

// NewLogger creates a new logger with configuration
func NewLogger(config LoggerConfig) Logger {
	errOut, infoOut := io.Writer(os.Stderr), io.Writer(os.Stdout)
	var closer io.Closer

	switch {
	case config.Output != nil:
		errOut, infoOut = config.Output, config.Output
	case config.File != "":
		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		lj := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    maxSize,
			MaxBackups: config.MaxBackups,
		}
		errOut, infoOut, closer = lj, lj, lj
	}

	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(infoOut, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(infoOut, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
		config:      config,
		fields:      make(map[string]interface{}),
		closer:      closer,
	}
}

// CloseLogger releases the log file held by l, if any.
func CloseLogger(l Logger) error {
	if dl, ok := l.(*defaultLogger); ok && dl.closer != nil {
		return dl.closer.Close()
	}
	return nil
}

// logEntry represents a structured log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// log writes a log entry with structured fields
func (l *defaultLogger) log(level string, logger *log.Logger, message string) {
	if !l.shouldLog(level) {
		return
	}

	// Depth 3 reports the caller of Error/Info/Debug
	if l.config.JSONOutput {
		entry := logEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     level,
			Message:   message,
		}
		if len(l.fields) > 0 {
			entry.Fields = l.fields
		}
		jsonData, err := json.Marshal(entry)
		if err == nil {
			logger.Output(3, string(jsonData))
		} else {
			logger.Output(3, fmt.Sprintf("[%s] %s %v", level, message, l.fields))
		}
		return
	}

	if len(l.fields) > 0 {
		logger.Output(3, fmt.Sprintf("%s %v", message, l.fields))
	} else {
		logger.Output(3, message)
	}
}

var logLevels = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"ERROR": 2,
}

// shouldLog checks if the log level should be logged based on config
func (l *defaultLogger) shouldLog(level string) bool {
	configLevel, ok := logLevels[l.config.Level]
	if !ok {
		configLevel = 0 // Default to DEBUG if invalid
	}
	logLevel, ok := logLevels[level]
	if !ok {
		return true
	}
	return logLevel >= configLevel
}

// Error logs an error message
func (l *defaultLogger) Error(args ...interface{}) {
	l.log("ERROR", l.errorLogger, fmt.Sprint(args...))
}

// Info logs an informational message
func (l *defaultLogger) Info(args ...interface{}) {
	l.log("INFO", l.infoLogger, fmt.Sprint(args...))
}

// Debug logs a debug message
func (l *defaultLogger) Debug(args ...interface{}) {
	l.log("DEBUG", l.debugLogger, fmt.Sprint(args...))
}

// WithFields returns a new logger with structured fields
// New fields override existing ones with the same key
func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return l.derive(newFields)
}

// WithContext returns a new logger carrying the run ID of ctx
func (l *defaultLogger) WithContext(ctx context.Context) Logger {
	runID := GetRunID(ctx)
	if runID == "" {
		return l
	}
	return l.WithFields(map[string]interface{}{"run_id": runID})
}

func (l *defaultLogger) derive(fields map[string]interface{}) *defaultLogger {
	return &defaultLogger{
		errorLogger: l.errorLogger,
		infoLogger:  l.infoLogger,
		debugLogger: l.debugLogger,
		config:      l.config,
		fields:      fields,
		closer:      l.closer,
	}
}

// Package-level logger instance for convenience functions
var (
	defaultLoggerInstance Logger
	defaultLoggerOnce     sync.Once
	defaultLoggerMu       sync.RWMutex
)

func initDefaultLogger() {
	defaultLoggerMu.Lock()
	if defaultLoggerInstance == nil {
		defaultLoggerInstance = NewDefaultLogger()
	}
	defaultLoggerMu.Unlock()
}

// DefaultLogger returns the package-level logger
func DefaultLogger() Logger {
	defaultLoggerOnce.Do(initDefaultLogger)
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLoggerInstance
}

// SetDefaultLogger replaces the package-level logger
func SetDefaultLogger(l Logger) {
	defaultLoggerOnce.Do(func() {})
	defaultLoggerMu.Lock()
	defaultLoggerInstance = l
	defaultLoggerMu.Unlock()
}

// hasFormatSpecifiers checks if string contains format specifiers like %s, %d, %v, etc.
func hasFormatSpecifiers(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '%' {
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9') || next == '.' || next == '+' || next == '-' || next == '#' {
				return true
			}
		}
	}
	return false
}

func formatArgs(args []interface{}) string {
	if len(args) > 1 {
		if format, ok := args[0].(string); ok && hasFormatSpecifiers(format) {
			return fmt.Sprintf(format, args[1:]...)
		}
	}
	return fmt.Sprint(args...)
}

// Info logs an informational message with format support
func Info(args ...interface{}) {
	if len(args) == 0 {
		return
	}
	DefaultLogger().Info(formatArgs(args))
}
