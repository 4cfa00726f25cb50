// Package observe provides application-wide observability primitives for
// Sonde: OpenTelemetry metrics, distributed tracing, structured logging, and
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

// meterName is the instrumentation scope name used for all Sonde metrics.
const meterName = "github.com/sondelabs/sonde"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use since the underlying OTel types
// handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TurnDuration tracks end-to-end conversation turn latency, from a final
	// user transcript arriving to the assistant turn being published.
	TurnDuration metric.Float64Histogram

	// ExtractionDuration tracks structured-extraction LLM call latency.
	ExtractionDuration metric.Float64Histogram

	// --- Counters ---

	// TurnsProcessed counts handled turns. Use with attribute:
	//   attribute.String("outcome", ...) — "completed" or "abandoned"
	TurnsProcessed metric.Int64Counter

	// EventsPublished counts wire events pushed to clients. Use with attribute:
	//   attribute.String("type", ...)
	EventsPublished metric.Int64Counter

	// --- Error counters ---

	// ExtractionErrors counts extraction failures. Use with attribute:
	//   attribute.String("provider", ...)
	ExtractionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational-turn latencies.
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
	if met.TurnDuration, err = m.Float64Histogram("sonde.turn.duration",
		metric.WithDescription("Latency of a full conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("sonde.extraction.duration",
		metric.WithDescription("Latency of structured-extraction LLM calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsProcessed, err = m.Int64Counter("sonde.turns.processed",
		metric.WithDescription("Number of conversation turns handled."),
	); err != nil {
		return nil, err
	}
	if met.EventsPublished, err = m.Int64Counter("sonde.events.published",
		metric.WithDescription("Number of wire events published to clients."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ExtractionErrors, err = m.Int64Counter("sonde.extraction.errors",
		metric.WithDescription("Number of failed structured-extraction calls."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("sonde.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sonde.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level default [Metrics] instance backed
// by the global OTel meter provider. It is created lazily on first use.
//
// Panics if instrument creation fails, which only happens on programmer error
// (duplicate registration with conflicting schemas).
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

// RecordTurn is a convenience method that records a processed turn counter
// increment with the standard attribute set.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.TurnsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordEventPublished is a convenience method that records a published wire
// event counter increment.
func (m *Metrics) RecordEventPublished(ctx context.Context, eventType string) {
	m.EventsPublished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordExtractionError is a convenience method that records an extraction
// error counter increment.
func (m *Metrics) RecordExtractionError(ctx context.Context, provider string) {
	m.ExtractionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
