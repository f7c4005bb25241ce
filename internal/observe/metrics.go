// Package observe provides application-wide observability primitives for
// Nami: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Nami metrics.
const meterName = "github.com/nami-os/nami"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks live session establishment latency.
	ConnectDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool call handling latency.
	ToolExecutionDuration metric.Float64Histogram

	// CreativeDuration tracks creative studio generation latency.
	CreativeDuration metric.Float64Histogram

	// --- Counters ---

	// FramesSent counts microphone chunks transmitted to the live engine.
	FramesSent metric.Int64Counter

	// FramesDropped counts microphone chunks dropped before transmission.
	// Use with attribute: attribute.String("reason", ...)
	FramesDropped metric.Int64Counter

	// DeltasScheduled counts audio deltas handed to the playback scheduler.
	DeltasScheduled metric.Int64Counter

	// DecodeErrors counts malformed audio deltas dropped at playback.
	DecodeErrors metric.Int64Counter

	// Interruptions counts barge-in flushes.
	Interruptions metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// Utterances counts finalized user utterances.
	Utterances metric.Int64Counter

	// --- Error counters ---

	// TransportErrors counts fatal live session failures.
	TransportErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("nami.session.connect.duration",
		metric.WithDescription("Latency of live session establishment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("nami.tool_execution.duration",
		metric.WithDescription("Latency of tool call handling."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CreativeDuration, err = m.Float64Histogram("nami.creative.duration",
		metric.WithDescription("Latency of creative studio generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesSent, err = m.Int64Counter("nami.capture.frames_sent",
		metric.WithDescription("Total microphone chunks transmitted to the live engine."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("nami.capture.frames_dropped",
		metric.WithDescription("Total microphone chunks dropped before transmission, by reason."),
	); err != nil {
		return nil, err
	}
	if met.DeltasScheduled, err = m.Int64Counter("nami.playback.deltas_scheduled",
		metric.WithDescription("Total audio deltas handed to the playback scheduler."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("nami.playback.decode_errors",
		metric.WithDescription("Total malformed audio deltas dropped at playback."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("nami.playback.interruptions",
		metric.WithDescription("Total barge-in flushes."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("nami.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("nami.transcript.utterances",
		metric.WithDescription("Total finalized user utterances."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TransportErrors, err = m.Int64Counter("nami.session.transport_errors",
		metric.WithDescription("Total fatal live session failures."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("nami.active_sessions",
		metric.WithDescription("Number of open live sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("nami.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordFrameDropped is a convenience method that records a dropped
// microphone chunk with its reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
