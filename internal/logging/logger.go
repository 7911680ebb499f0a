// Package logging builds the process logger and bridges it into the
// libraries that bring their own logging interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "petmatch"

// Watermill logs every delivery at debug; those lines go to trace so a debug
// worker log stays readable.
const (
	watermillErrorLevel = zerolog.ErrorLevel
	watermillInfoLevel  = zerolog.InfoLevel
	watermillDebugLevel = zerolog.TraceLevel
	watermillTraceLevel = zerolog.TraceLevel
)

// New returns a console logger for ENVIRONMENT=local and a JSON logger
// otherwise.
func New(environment, level string) (zerolog.Logger, error) {
	return newLogger(os.Stdout, environment, level)
}

func newLogger(out io.Writer, environment, level string) (zerolog.Logger, error) {
	parsedLevel, err := ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger(), nil
}

// ParseLevel reads LOG_LEVEL. "warning" is accepted for warn.
func ParseLevel(level string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "warning" {
		normalized = "warn"
	}
	parsed, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}
	return parsed, nil
}

// Component tags logger with the component emitting through it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
