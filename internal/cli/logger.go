package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
)

const (
	textFormat = "text"
	jsonFormat = "json"
)

type logConfig struct {
	Verbosity int
	Format    string
}

func addLogFlags(flags *pflag.FlagSet, cfg *logConfig) {
	flags.IntVarP(&cfg.Verbosity, "v", "v", 0, "Logging level")
	flags.StringVar(&cfg.Format, "log-format", textFormat, "Logging format: text or json")
}

// newLogger constructs a logr logger backed by a slog handler writing to w
func newLogger(cfg logConfig, w io.Writer) (logr.Logger, error) {
	opts := &slog.HandlerOptions{Level: toSlogLevel(cfg.Verbosity)}

	var h slog.Handler
	switch cfg.Format {
	case textFormat:
		h = slog.NewTextHandler(w, opts)
	case jsonFormat:
		h = slog.NewJSONHandler(w, opts)
	default:
		return logr.Logger{}, fmt.Errorf("unrecognised logging format: %s", cfg.Format)
	}
	return logr.FromSlogHandler(h), nil
}

// toSlogLevel converts a logr v-level to a slog level
func toSlogLevel(verbosity int) slog.Level {
	if verbosity <= 0 {
		return slog.LevelInfo
	}
	return slog.Level(-verbosity)
}
