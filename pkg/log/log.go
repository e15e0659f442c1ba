package log

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const (
	// DefaultLoggerFlag is the flag set used by the default logger
	DefaultLoggerFlag = log.Ldate | log.Ltime | log.LUTC
)

var (
	defaultLogger *Logger
	defaultLock   sync.RWMutex
)

func init() {
	defaultLogger = New(os.Stdout, "", DefaultLoggerFlag, LogLevelInfo)
}

type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (level LogLevel) String() string {
	switch level {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a log level string into a LogLevel.
// Valid log levels are: error, warn, info, debug, trace.
func ParseLogLevel(level string) (LogLevel, error) {
	switch level {
	case "error":
		return LogLevelError, nil
	case "warn":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "trace":
		return LogLevelTrace, nil
	default:
		return LogLevelError, fmt.Errorf("unknown log level: %s", level)
	}
}

// Fields are structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

type Logger struct {
	logger *log.Logger
	lock   sync.RWMutex
	level  LogLevel
}

func New(out io.Writer, prefix string, flag int, level LogLevel) *Logger {
	return &Logger{
		logger: log.New(out, prefix, flag),
		level:  level,
	}
}

// SetDefaultLogger replaces the package level logger.
func SetDefaultLogger(logger *Logger) {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	defaultLogger = logger
}

// Default returns the package level logger.
func Default() *Logger {
	defaultLock.RLock()
	defer defaultLock.RUnlock()
	return defaultLogger
}

func SetLevel(level LogLevel) {
	Default().SetLevel(level)
}

func (l *Logger) SetLevel(level LogLevel) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.level = level
}

func (l *Logger) Level() LogLevel {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.level
}

func (l *Logger) logf(level LogLevel, fields Fields, format string, args ...interface{}) {
	if level > l.Level() {
		return
	}
	logEntry := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		logEntry[k] = v
	}
	logEntry["level"] = level.String()
	logEntry["msg"] = fmt.Sprintf(format, args...)
	msgBytes, err := json.Marshal(logEntry)
	if err != nil {
		// a field that can't be marshalled shouldn't swallow the message
		msgBytes, _ = json.Marshal(map[string]interface{}{
			"level": level.String(),
			"msg":   logEntry["msg"],
		})
	}
	l.logger.Print(string(msgBytes))
}

// WithFields returns an Entry that attaches fields to every message.
func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: fields}
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, nil, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, nil, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, nil, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, nil, format, args...)
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.logf(LogLevelTrace, nil, format, args...)
}

// Entry is a logger bound to a set of fields.
type Entry struct {
	logger *Logger
	fields Fields
}

func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

func (e *Entry) Error(format string, args ...interface{}) {
	e.logger.logf(LogLevelError, e.fields, format, args...)
}

func (e *Entry) Warn(format string, args ...interface{}) {
	e.logger.logf(LogLevelWarn, e.fields, format, args...)
}

func (e *Entry) Info(format string, args ...interface{}) {
	e.logger.logf(LogLevelInfo, e.fields, format, args...)
}

func (e *Entry) Debug(format string, args ...interface{}) {
	e.logger.logf(LogLevelDebug, e.fields, format, args...)
}

func (e *Entry) Trace(format string, args ...interface{}) {
	e.logger.logf(LogLevelTrace, e.fields, format, args...)
}

func WithFields(fields Fields) *Entry {
	return Default().WithFields(fields)
}

func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

func Trace(format string, args ...interface{}) {
	Default().Trace(format, args...)
}
