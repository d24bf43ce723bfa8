// Package logger builds the zerolog logger shared by the CLI, the SDK client
// and the sandbox server.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/config"
)

// New returns a timestamped logger writing to stderr. Development mode uses
// the human-readable console writer.
func New(cfg *config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg *config.Config, w io.Writer) zerolog.Logger {
	out := w
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(out).Level(cfg.Level()).With().Timestamp().Logger()
}
