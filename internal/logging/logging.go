// Package logging wires zerolog into the gateway: one logger built once at
// startup from LOG_LEVEL/LOG_FORMAT/LOG_EXTRA_FIELDS, threaded through
// context.Context so every chain stage and driver can attach structured
// fields (request_id, provider_id, model, dialect, stage) without passing
// a logger parameter through every call.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Options configures the process-wide base logger.
type Options struct {
	Level       string            // "debug", "info", "warn", "error"
	Format      string            // "json", "text", "structured"
	ExtraFields map[string]string // static fields attached to every line
}

// New builds the base logger. "text" and "structured" both render to a
// human-readable console writer; "json" (the default for production) emits
// one JSON object per line.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if opts.Format == "text" || opts.Format == "structured" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	for k, v := range opts.ExtraFields {
		ctx = ctx.Str(k, v)
	}
	return ctx.Logger()
}

// Into stores logger in ctx.
func Into(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From retrieves the logger stored by Into, falling back to a disabled
// logger (not the global default) so call sites never panic on a bare
// context.Background() in tests.
func From(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// With returns a child context whose logger has the given fields attached.
func With(ctx context.Context, fields map[string]any) context.Context {
	l := From(ctx).With().Fields(fields).Logger()
	return Into(ctx, l)
}
