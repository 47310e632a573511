package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/audiosession/pkg/session"
)

const tracerName = "github.com/MrWong99/audiosession"

// Span attribute keys describing a session snapshot.
const (
	AttrOutputRoute  = attribute.Key("audiosession.output_route")
	AttrInputRoute   = attribute.Key("audiosession.input_route")
	AttrCategory     = attribute.Key("audiosession.category")
	AttrMode         = attribute.Key("audiosession.mode")
	AttrSampleRate   = attribute.Key("audiosession.sample_rate")
	AttrLargeSpeaker = attribute.Key("audiosession.large_speaker")
	AttrErrorKind    = attribute.Key("audiosession.error_kind")
)

// Tracer returns the monitor's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SnapshotAttrs describes s as span attributes. The error kind is included
// only when s carries an error.
func SnapshotAttrs(s session.Snapshot) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrOutputRoute.String(string(s.OutputRoute())),
		AttrInputRoute.String(string(s.InputRoute())),
		AttrCategory.String(string(s.Category)),
		AttrMode.String(string(s.Mode)),
		AttrSampleRate.Float64(s.SampleRate),
		AttrLargeSpeaker.Bool(s.LargeSpeakerActive),
	}
	if s.HasError() {
		attrs = append(attrs, AttrErrorKind.String(string(s.ErrKind)))
	}
	return attrs
}

// CorrelationID returns the trace ID of the active span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns [slog.Default] with trace_id and span_id added when ctx
// carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
