package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/skillprobe"

// Attribute keys shared by interview spans and log lines.
const (
	KeySessionID     = attribute.Key("session_id")
	KeyQuestionIndex = attribute.Key("question_index")
	KeySource        = attribute.Key("source")
)

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// StartSpan starts a span on the global tracer provider with attrs already
// set. End the returned span when the operation finishes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
// HTTP responses echo it in X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger, tagged with trace_id and span_id when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

// LogExporter writes each finished span as one debug line on the default
// logger, with the span's attributes flattened into the record.
type LogExporter struct{}

var _ sdktrace.SpanExporter = LogExporter{}

// ExportSpans implements [sdktrace.SpanExporter].
func (LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	log := slog.Default()
	for _, s := range spans {
		args := make([]any, 0, 2*len(s.Attributes())+8)
		args = append(args,
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		)
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		log.DebugContext(ctx, "span finished", args...)
	}
	return nil
}

// Shutdown implements [sdktrace.SpanExporter].
func (LogExporter) Shutdown(context.Context) error { return nil }
