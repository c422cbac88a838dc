// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"

	serviceName = "montage"
)

// Log is the global logger instance. It discards output until Init is called
// so packages can log safely from tests.
var Log = zerolog.New(io.Discard)

// Init initializes the global logger with the specified level and output format
func Init(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05.000",
		}
	}

	zerolog.SetGlobalLevel(parseLogLevel(level))

	Log = zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Caller().
		Logger()
}

// With returns a child of the global logger tagged with a component name.
// The child is derived at call time, so callers should not cache it across Init.
func With(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
