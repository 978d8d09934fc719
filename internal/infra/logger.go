package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can take a logger without
// importing zerolog themselves.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a console writer at
// debug level; anything else logs JSON at info. LOG_LEVEL overrides the level.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, os.Getenv("LOG_LEVEL"))
}

func newLogger(out io.Writer, appEnv, levelName string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName))); err == nil && levelName != "" {
		level = parsed
	}

	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "docbot").
		Logger()

	zerolog.DefaultContextLogger = &logger
	return logger
}
