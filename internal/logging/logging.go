// Package logging configures the global zerolog logger and per-request sub-loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level, format and an optional log file.
type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File receives a JSON copy of every line when set.
	File string `koanf:"file"`
}

// Setup installs the global logger. The returned closer releases the log file.
func Setup(cfg Config, stderr io.Writer) (io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = stderr
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
		closer = f
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// WithRequest attaches a sub-logger with a fresh request id and the given fields to ctx.
func WithRequest(ctx context.Context, fields map[string]string) (context.Context, string) {
	id := uuid.NewString()
	lc := log.Logger.With().Str("request_id", id)
	for k, v := range fields {
		lc = lc.Str(k, v)
	}
	logger := lc.Logger()
	return logger.WithContext(ctx), id
}

// From returns the request logger stored in ctx, or the global logger.
func From(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
