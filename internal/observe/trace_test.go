package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/audiosession/pkg/session"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs redirects the default slog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID_EmptyByDefault(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "monitor.start")
	if cid := CorrelationID(ctx); len(cid) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", cid)
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "monitor.start" {
		t.Fatalf("spans = %v, want one span named monitor.start", spans)
	}
}

func TestLogger_IncludesTraceID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	buf := captureLogs(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "log-test")
	defer span.End()

	Logger(ctx).Info("route changed")

	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") || !strings.Contains(logged, "span_id=") {
		t.Errorf("log output missing trace attributes: %s", logged)
	}
}

func TestLogger_NoSpan(t *testing.T) {
	buf := captureLogs(t)
	Logger(context.Background()).Info("route changed")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log output should not contain trace_id: %s", buf.String())
	}
}

func TestSnapshotAttrs(t *testing.T) {
	s := session.Snapshot{
		Category:           session.CategoryPlayAndRecord,
		Mode:               session.ModeVoiceChat,
		SampleRate:         48000,
		LargeSpeakerActive: true,
		Routing:            session.Routing{Outputs: []session.Port{{Type: session.RouteSpeaker}}},
	}

	got := map[attribute.Key]attribute.Value{}
	for _, kv := range SnapshotAttrs(s) {
		got[kv.Key] = kv.Value
	}
	if got[AttrOutputRoute].AsString() != "speaker" || got[AttrInputRoute].AsString() != "none" {
		t.Errorf("routes = %v/%v", got[AttrOutputRoute], got[AttrInputRoute])
	}
	if !got[AttrLargeSpeaker].AsBool() || got[AttrSampleRate].AsFloat64() != 48000 {
		t.Errorf("attrs = %v", got)
	}
	if _, ok := got[AttrErrorKind]; ok {
		t.Error("error kind set on a healthy snapshot")
	}

	failed := session.Unavailable(session.ErrQueryFailed, time.Now())
	var kind string
	for _, kv := range SnapshotAttrs(failed) {
		if kv.Key == AttrErrorKind {
			kind = kv.Value.AsString()
		}
	}
	if kind != string(session.KindQueryFailure) {
		t.Errorf("error kind = %q, want %q", kind, session.KindQueryFailure)
	}
}
