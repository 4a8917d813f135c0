// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Extractor pulls request-scoped attributes out of a context.
type Extractor func(ctx context.Context) []slog.Attr

// RequestID adds the chi request id, when the request has one.
func RequestID(ctx context.Context) []slog.Attr {
	if id := chiMiddleware.GetReqID(ctx); id != "" {
		return []slog.Attr{slog.String("request_id", id)}
	}
	return nil
}

// TraceContext adds the ids of the span active in ctx.
func TraceContext(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

// contextHandler decorates every record with the attributes its extractors
// find in the record's context.
type contextHandler struct {
	slog.Handler
	extractors []Extractor
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, extract := range h.extractors {
		r.AddAttrs(extract(ctx)...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}

// Options selects the output of Setup. Zero values mean json at info level
// on os.Stderr.
type Options struct {
	Service string
	Version string
	Format  string
	Level   string
	Output  io.Writer
}

// Setup builds a logger stamped with the service name and version whose
// records carry the request id and trace context of the logging call.
func Setup(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, handlerOpts)
	} else {
		base = slog.NewJSONHandler(w, handlerOpts)
	}

	base = base.WithAttrs([]slog.Attr{
		slog.String("service", opts.Service),
		slog.String("version", opts.Version),
	})

	return slog.New(contextHandler{
		Handler:    base,
		extractors: []Extractor{RequestID, TraceContext},
	})
}

// ParseLevel accepts slog level names in any case, including offsets such as
// "info+2", and "warning". Anything else is info.
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
