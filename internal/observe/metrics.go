// Package observe provides the observability primitives shared by the
// audio-session monitor and its developer tools: OpenTelemetry metrics,
// tracing helpers, trace-aware slog loggers, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs an SDK meter provider backed by a Prometheus exporter so that the
// debug server can expose /metrics. Without it, the global no-op provider is
// used and recording costs almost nothing, which is what the embedded plugin
// build wants by default. Tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/audiosession"

// Metrics holds all OpenTelemetry metric instruments for the monitor.
// All fields are safe for concurrent use.
type Metrics struct {
	// Notifications counts platform notifications. Attributes:
	//   attribute.String("kind", ...), attribute.String("status", "handled"|"ignored")
	Notifications metric.Int64Counter

	// Queries counts platform state queries. Attribute:
	//   attribute.String("status", "ok"|"error"|"circuit_open")
	Queries metric.Int64Counter

	// QueryDuration tracks platform query latency.
	QueryDuration metric.Float64Histogram

	// Commands counts configuration commands. Attributes:
	//   attribute.String("command", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// EventsDropped counts host events discarded because the queue was full.
	EventsDropped metric.Int64Counter

	// ActiveSubscriptions tracks live platform notification subscriptions.
	ActiveSubscriptions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks debug server request time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// queryBuckets are histogram boundaries (seconds) for platform queries, which
// normally complete well under a millisecond.
var queryBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Notifications, err = m.Int64Counter("audiosession.notifications",
		metric.WithDescription("Platform audio session notifications by kind and handling status."),
	); err != nil {
		return nil, err
	}
	if met.Queries, err = m.Int64Counter("audiosession.queries",
		metric.WithDescription("Platform audio session state queries by status."),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("audiosession.query.duration",
		metric.WithDescription("Latency of platform audio session state queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("audiosession.commands",
		metric.WithDescription("Session configuration commands by command and status."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("audiosession.events.dropped",
		metric.WithDescription("Host events dropped because the event queue was full."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSubscriptions, err = m.Int64UpDownCounter("audiosession.subscriptions.active",
		metric.WithDescription("Number of live platform notification subscriptions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("audiosession.http.request.duration",
		metric.WithDescription("Debug server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. The OTel global provider delegates,
// so instruments created before [InitProvider] still report afterwards.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordNotification records one notification with its handling status.
func (m *Metrics) RecordNotification(ctx context.Context, kind, status string) {
	m.Notifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordQuery records one platform query and its latency in seconds.
func (m *Metrics) RecordQuery(ctx context.Context, status string, seconds float64) {
	m.Queries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.QueryDuration.Record(ctx, seconds)
}

// RecordCommand records one configuration command.
func (m *Metrics) RecordCommand(ctx context.Context, command, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("status", status),
		),
	)
}
