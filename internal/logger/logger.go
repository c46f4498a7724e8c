package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	// globalLogger holds the process-wide logger once Init has run.
	globalLogger *Logger
	once         sync.Once
)

// Init builds the process-wide logger. Later calls return the first instance.
func Init(level, format string) *Logger {
	once.Do(func() {
		globalLogger = New(level, format)
	})
	return globalLogger
}

// Get returns the process-wide logger, or a no-op logger before Init.
func Get() *Logger {
	if globalLogger == nil {
		return Nop()
	}
	return globalLogger
}

// New builds a standalone logger.
func New(level, format string) *Logger {
	return newZapLogger(level, format)
}

// Nop returns a logger that discards everything; handy in tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
