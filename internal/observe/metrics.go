// Package observe provides application-wide observability primitives for
// surveyscribe: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all surveyscribe metrics.
const meterName = "github.com/MrWong99/surveyscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StructureDuration tracks end-to-end transcript structuring latency.
	// Use with attribute.String("mode", "rules"|"llm").
	StructureDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency on the model path.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// StatementsRouted counts statements assigned to a section. Use with
	// attribute.String("section", ...).
	StatementsRouted metric.Int64Counter

	// StatementsDropped counts statements that matched no topic.
	StatementsDropped metric.Int64Counter

	// StatementsRerouted counts clauses moved to another section after routing.
	StatementsRerouted metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// RoutingRefreshes counts routing config refreshes. Use with
	// attribute.String("status", "ok"|"error").
	RoutingRefreshes metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// StagePanics counts recovered panics inside the rule engine.
	StagePanics metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks structuring calls currently in flight.
	ActiveRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The rule
// path completes in milliseconds; the LLM path takes seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StructureDuration, err = m.Float64Histogram("surveyscribe.structure.duration",
		metric.WithDescription("Latency of transcript structuring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("surveyscribe.llm.duration",
		metric.WithDescription("Latency of LLM completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.StatementsRouted, err = m.Int64Counter("surveyscribe.statements.routed",
		metric.WithDescription("Statements routed to a section, by section."),
	); err != nil {
		return nil, err
	}
	if met.StatementsDropped, err = m.Int64Counter("surveyscribe.statements.dropped",
		metric.WithDescription("Statements that matched no topic."),
	); err != nil {
		return nil, err
	}
	if met.StatementsRerouted, err = m.Int64Counter("surveyscribe.statements.rerouted",
		metric.WithDescription("Clauses moved by the reroute pass, by target section."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("surveyscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.RoutingRefreshes, err = m.Int64Counter("surveyscribe.routing.refreshes",
		metric.WithDescription("Routing config refreshes by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("surveyscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.StagePanics, err = m.Int64Counter("surveyscribe.engine.panics",
		metric.WithDescription("Recovered panics in the rule engine."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("surveyscribe.active_requests",
		metric.WithDescription("Structuring calls currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("surveyscribe.http.request.duration",
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

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordRoutingRefresh records one routing config refresh outcome.
func (m *Metrics) RecordRoutingRefresh(ctx context.Context, status string) {
	m.RoutingRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRouting records per-section routed counts, the dropped count and the
// rerouted counts for one structuring call.
func (m *Metrics) RecordRouting(ctx context.Context, routed map[string]int, dropped int, rerouted map[string]int) {
	for section, n := range routed {
		m.StatementsRouted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("section", section)))
	}
	if dropped > 0 {
		m.StatementsDropped.Add(ctx, int64(dropped))
	}
	for section, n := range rerouted {
		m.StatementsRerouted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("section", section)))
	}
}
