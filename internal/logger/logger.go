// Package logger builds the zerolog logger shared by the server and CLI.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger at the given level writing to out (stdout when nil).
// At debug level output is human-friendly console format; otherwise JSON lines.
// An unknown level falls back to info.
func New(level string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if out == nil {
		out = os.Stdout
	}

	writer := out
	if lvl == zerolog.DebugLevel {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Component returns l tagged with a component field.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
