// package logger wraps a shared structured logger for the engine. Everything
// the engine reports (skipped draws, fallbacks, device errors, profiler stats)
// goes through these package-level helpers so output stays uniform.
package logger

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

var singleton *log.Logger

func get() *log.Logger {
	once.Do(func() {
		singleton = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "kestrel",
		})
		singleton.SetLevel(log.InfoLevel)
	})
	return singleton
}

// SetLevel adjusts the minimum level that will be logged.
//
// Parameters:
//   - level: one of log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel
func SetLevel(level log.Level) {
	get().SetLevel(level)
}

// Debug logs a message with optional key-value pairs at debug level.
func Debug(msg string, keyvals ...any) {
	get().Debug(msg, keyvals...)
}

// Info logs a message with optional key-value pairs at info level.
func Info(msg string, keyvals ...any) {
	get().Info(msg, keyvals...)
}

// Warn logs a message with optional key-value pairs at warn level.
func Warn(msg string, keyvals ...any) {
	get().Warn(msg, keyvals...)
}

// Error logs a message with optional key-value pairs at error level.
func Error(msg string, keyvals ...any) {
	get().Error(msg, keyvals...)
}

// Fatal logs a message with optional key-value pairs at fatal level and exits
// the process.
func Fatal(msg string, keyvals ...any) {
	get().Fatal(msg, keyvals...)
}

// Debugf logs a printf-formatted message at debug level.
func Debugf(format string, args ...any) {
	get().Debugf(format, args...)
}

// Infof logs a printf-formatted message at info level.
func Infof(format string, args ...any) {
	get().Infof(format, args...)
}

// Warnf logs a printf-formatted message at warn level.
func Warnf(format string, args ...any) {
	get().Warnf(format, args...)
}

// Errorf logs a printf-formatted message at error level.
func Errorf(format string, args ...any) {
	get().Errorf(format, args...)
}

// Fatalf logs a printf-formatted message at fatal level and exits the process.
func Fatalf(format string, args ...any) {
	get().Fatalf(format, args...)
}
