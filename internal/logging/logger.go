// Package logging provides structured, leveled logging for the recorder project.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a configured logrus.Logger with the level/API shape the
// rest of this module depends on.
type Logger struct {
	entry *logrus.Entry
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel mirrors logrus.Level so callers don't need to import logrus
// directly just to build a Config.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Output io.Writer
	Fields logrus.Fields
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger from the given config.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(config.Level.logrusLevel())
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: base.WithFields(config.Fields)}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// With returns a Logger carrying additional structured fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{entry: l.entry.WithFields(fieldsFrom(args))}
}

func fieldsFrom(args []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *Logger) Debug(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Debug(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Info(msg)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Warn(msg)
}

func (l *Logger) Error(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Error(msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

// Printf satisfies callers that want a plain printf-style sink; it logs
// at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Fatal logs at error level and exits the process. Reserved for
// configuration-time failures that cannot be recovered from.
func (l *Logger) Fatal(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Error(msg)
	os.Exit(1)
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
func Fatal(msg string, args ...any) { Default().Fatal(msg, args...) }
