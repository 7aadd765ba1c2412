// Package observe provides application-wide observability primitives for
// Loreforge: OpenTelemetry metrics and the SDK provider bootstrap.
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

// meterName is the instrumentation scope name used for all Loreforge metrics.
const meterName = "github.com/loreforge/loreforge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TurnDuration tracks end-to-end turn processing latency. Use with
	// attribute: attribute.String("complexity", "SIMPLE"|"COMPLEX").
	TurnDuration metric.Float64Histogram

	// LLMDuration tracks single agent-call latency.
	LLMDuration metric.Float64Histogram

	// PlanDuration tracks background planning-run latency.
	PlanDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts processed turns. Use with attributes:
	//   attribute.String("complexity", ...), attribute.String("intent", ...)
	Turns metric.Int64Counter

	// LLMRequests counts agent calls. Use with attributes:
	//   attribute.String("agent", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// EventsEmitted counts game events by variant. Use with attribute:
	//   attribute.String("event", ...)
	EventsEmitted metric.Int64Counter

	// --- Error counters ---

	// LLMErrors counts failed agent calls by agent.
	LLMErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveGames tracks the number of live game sessions.
	ActiveGames metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// turn pipelines that include one or more LLM round trips.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("loreforge.turn.duration",
		metric.WithDescription("End-to-end turn processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("loreforge.llm.duration",
		metric.WithDescription("Latency of a single agent call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlanDuration, err = m.Float64Histogram("loreforge.plan.duration",
		metric.WithDescription("Latency of a background planning run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("loreforge.turns",
		metric.WithDescription("Total processed turns by complexity and intent."),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("loreforge.llm.requests",
		metric.WithDescription("Total agent calls by agent and status."),
	); err != nil {
		return nil, err
	}
	if met.EventsEmitted, err = m.Int64Counter("loreforge.events.emitted",
		metric.WithDescription("Total game events emitted by variant."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.LLMErrors, err = m.Int64Counter("loreforge.llm.errors",
		metric.WithDescription("Total failed agent calls by agent."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveGames, err = m.Int64UpDownCounter("loreforge.active_games",
		metric.WithDescription("Number of live game sessions."),
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

// RecordTurn records one processed turn with its latency.
func (m *Metrics) RecordTurn(ctx context.Context, complexity, intent string, seconds float64) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("complexity", complexity),
			attribute.String("intent", intent),
		),
	)
	m.TurnDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("complexity", complexity)),
	)
}

// RecordLLMRequest records one agent call with its latency and outcome.
func (m *Metrics) RecordLLMRequest(ctx context.Context, agent, status string, seconds float64) {
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("status", status),
		),
	)
	m.LLMDuration.Record(ctx, seconds)
	if status != "ok" {
		m.LLMErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("agent", agent)),
		)
	}
}

// RecordEvent records one emitted game event by variant name.
func (m *Metrics) RecordEvent(ctx context.Context, variant string) {
	m.EventsEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", variant)),
	)
}
