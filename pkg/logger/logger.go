// Package logger defines the logging surface shared by every dexwatch package
package logger

import "strings"

type Level int8

const (
	Disabled   Level = -1   // Disabled turns logging off.
	TraceLevel Level = iota // TraceLevel is used for wire level details.
	DebugLevel              // DebugLevel is used for expected conditions worth tracing, like unknown pairs.
	InfoLevel               // InfoLevel is used for lifecycle events and sent notifications.
	WarnLevel               // WarnLevel is used for contained failures, like a skipped pair.
	ErrorLevel              // ErrorLevel is used for failures that need attention.
	FatalLevel              // FatalLevel is used for failures that stop the process.
)

type Logger interface {
	WithField(key string, value any) Logger  // WithField returns a logger with the given key-value pair.
	WithFields(fields map[string]any) Logger // WithFields returns a logger with the given fields.
	WithError(err error) Logger              // WithError returns a logger with the given error.

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any) // Fatal logs the message and then exits the program.

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}

// ParseLevel converts a textual level, unknown values fall back to InfoLevel
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "disabled", "off":
		return Disabled
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
