// Package logger builds the application's root zerolog logger. Services,
// repositories and handlers never construct their own; they derive
// contextual children from the value returned here.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the root logger's verbosity and output format.
type Config struct {
	Level  string // debug, info, warn, error (anything else means info)
	Pretty bool   // human-readable console output for dev mode
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the root logger: RFC3339 timestamps, caller annotation, JSON
// to stdout, or a console writer when Pretty is set.
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger routes zerolog's package-level logger through l, so
// stray log.Info() calls land in the same stream.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
