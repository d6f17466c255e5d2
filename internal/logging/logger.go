// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "consult-scheduler"

// New returns a console logger in development and a JSON logger with
// timestamp and caller otherwise. An unknown level falls back to info.
func New(appEnv, level string) zerolog.Logger {
	return newWithWriter(os.Stdout, appEnv, level)
}

func newWithWriter(out io.Writer, appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if appEnv == "development" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).
			Level(lvl).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}
