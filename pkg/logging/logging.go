// Package logging configures the process-wide zerolog setup. Analysis
// components receive a zerolog.Logger at construction; this package only owns
// the global level, format and destination.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logWriter stores the current log destination globally.
var logWriter io.Writer

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logWriter = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Configure sets the global log level and output format. format is "console"
// or "json"; JSON goes straight to the writer for log shippers.
func Configure(levelStr, format string) error {
	level := parseLogLevel(levelStr)
	zerolog.SetGlobalLevel(level)

	w := logWriter
	if strings.EqualFold(format, "json") {
		w = os.Stderr
	}

	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger
	return nil
}

// Logger returns the configured global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// parseLogLevel converts a string log level to zerolog.Level, defaulting to
// info on empty and error-logging invalid values.
func parseLogLevel(levelString string) zerolog.Level {
	if levelString == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to info level.")
		return zerolog.InfoLevel
	}
	return level
}

// SetLogWriter overrides the log destination, mainly for tests.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
