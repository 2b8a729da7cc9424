// Package observe provides application-wide observability primitives for
// Speakwise: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// via the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Speakwise metrics.
const meterName = "github.com/speakwise/speakwise"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency, polling
	// included.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks completion-service latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// AnalysisDuration tracks lexical-analysis worker exchange latency.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Corrections counts correction events applied to sessions.
	Corrections metric.Int64Counter

	// Turns counts completed tutoring turns. Use with attribute:
	//   attribute.String("mode", ...)
	Turns metric.Int64Counter

	// PracticeSubmissions counts practice scoring calls. Use with attribute:
	//   attribute.String("outcome", "scored"|"degraded")
	PracticeSubmissions metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks in-flight pipeline requests.
	ActiveRequests metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The upper
// buckets cover transcription polling and the analysis worker deadline.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("speakwise.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription including polling."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("speakwise.llm.duration",
		metric.WithDescription("Latency of completion-service calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("speakwise.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("speakwise.analysis.duration",
		metric.WithDescription("Latency of lexical-analysis worker exchanges."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("speakwise.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("speakwise.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("speakwise.corrections",
		metric.WithDescription("Total correction events applied to sessions."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("speakwise.turns",
		metric.WithDescription("Total completed tutoring turns by mode."),
	); err != nil {
		return nil, err
	}
	if met.PracticeSubmissions, err = m.Int64Counter("speakwise.practice.submissions",
		metric.WithDescription("Total practice scoring calls by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("speakwise.active_requests",
		metric.WithDescription("Number of in-flight pipeline requests."),
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

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error with the standard attribute
// set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTurn records one completed tutoring turn for the given mode.
func (m *Metrics) RecordTurn(ctx context.Context, mode string, corrected bool) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	if corrected {
		m.Corrections.Add(ctx, 1)
	}
}

// RecordPractice records a practice scoring call and whether it degraded to a
// transcript-only result.
func (m *Metrics) RecordPractice(ctx context.Context, degraded bool) {
	outcome := "scored"
	if degraded {
		outcome = "degraded"
	}
	m.PracticeSubmissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
