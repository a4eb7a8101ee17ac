
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects level, output format (json or pretty) and an optional log file.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Setup configures the global logger. Logs go to stderr so stdout stays free
// for NDJSON output.
func Setup(cfg Config) (zerolog.Logger, error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg Config, console io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)

	out := console
	if cfg.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), err
		}
		out = io.MultiWriter(out, f)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger, nil
}

// For returns the global logger tagged with a component name.
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
