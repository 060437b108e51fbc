package observability

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps the leveled logger used across the application.
// Cookie values and passwords must never be passed as field values.
type Logger struct {
	l *charmlog.Logger
}

const (
	defaultMaxSizeMB  = 20
	defaultMaxBackups = 5
)

// NewLogger creates a logger writing to logPath with rotation, or to
// stderr when logPath is empty. Zero rotation values pick defaults,
// unknown levels fall back to info.
func NewLogger(logPath, logLevel string, maxSizeMB, maxBackups int) *Logger {
	var w io.Writer = os.Stderr
	if logPath != "" {
		size, backups := rotationSettings(maxSizeMB, maxBackups)
		w = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    size, // megabytes
			MaxBackups: backups,
			Compress:   true,
		}
	}

	level, err := charmlog.ParseLevel(logLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}

	l := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	return &Logger{l: l}
}

func rotationSettings(maxSizeMB, maxBackups int) (int, int) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	return maxSizeMB, maxBackups
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{l: charmlog.New(io.Discard)}
}

// NewWriterLogger logs to w without timestamps. Used in tests to
// assert on emitted entries.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{l: charmlog.New(w)}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.l.Error(msg, fields...)
}

// With returns a logger with fields attached to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{l: l.l.With(fields...)}
}
