package observability

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type runIDKey struct{}

// InitLogger sets the global zerolog logger for an analytics binary.
// Development gets console output on stderr, everything else JSON on stdout.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log.Logger = newLogger(out, serviceName, env)
}

func newLogger(out io.Writer, serviceName, env string) zerolog.Logger {
	ctx := zerolog.New(out).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", env)
	if env != "development" {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// WithRunID tags ctx with an aggregation run id. Loggers taken from the
// returned context carry it as run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// LoggerFromContext returns the global logger enriched with the run id and
// the active span, when present.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	lc := log.Logger.With()

	if id := RunIDFromContext(ctx); id != "" {
		lc = lc.Str("run_id", id)
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		lc = lc.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}

	logger := lc.Logger()
	return &logger
}
