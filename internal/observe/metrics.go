// Package observe provides the evaluator's observability primitives:
// OpenTelemetry metric instruments, tracing helpers, and the HTTP middleware
// that ties them together.
//
// Metrics flow through the OpenTelemetry API and reach Prometheus via the
// exporter wired in [InitProvider]. Production code shares the package-level
// [DefaultMetrics]; tests build their own [Metrics] from a manual-reader
// provider so observations stay isolated.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all evaluator metrics.
const meterName = "github.com/ce-ky/AudioKeywordsEvaluator-demo"

// latencyBuckets are histogram boundaries in seconds, sized for remote model
// calls, which dominate the pipeline.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics bundles every instrument the evaluator records. The OTel
// instrument types are safe for concurrent use.
type Metrics struct {
	// TranscriptionDuration tracks speech-to-text latency per audio blob.
	TranscriptionDuration metric.Float64Histogram

	// AnalysisDuration tracks one full analysis pass, translation and the
	// remote matching call included.
	AnalysisDuration metric.Float64Histogram

	// TranslationDuration tracks keyword batch translation latency.
	TranslationDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls, attributed by provider,
	// kind, and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by provider and kind.
	ProviderErrors metric.Int64Counter

	// DegradedAnalyses counts passes that finished exact-only because the
	// semantic service was unavailable.
	DegradedAnalyses metric.Int64Counter

	// KeywordMatches counts detected keywords per pass, attributed by
	// match kind ("exact" or "fuzzy").
	KeywordMatches metric.Int64Counter

	// ActiveSessions tracks sessions with accepted audio not yet cleared.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// instrumentBuilder creates instruments on one meter and keeps the first
// error, so [NewMetrics] reads as a flat list of declarations.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) latency(name, desc string) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	b.err = err
	return h
}

func (b *instrumentBuilder) counter(name, desc string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.err = err
	return c
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instrumentBuilder{meter: mp.Meter(meterName)}

	m := &Metrics{
		TranscriptionDuration: b.latency("akeval.transcription.duration",
			"Latency of speech-to-text transcription."),
		AnalysisDuration: b.latency("akeval.analysis.duration",
			"Latency of one full keyword analysis pass."),
		TranslationDuration: b.latency("akeval.translation.duration",
			"Latency of keyword batch translation."),
		ProviderRequests: b.counter("akeval.provider.requests",
			"Total provider API requests by provider, kind, and status."),
		ProviderErrors: b.counter("akeval.provider.errors",
			"Total provider errors by provider and kind."),
		DegradedAnalyses: b.counter("akeval.analysis.degraded",
			"Analysis passes completed with exact-only results."),
		KeywordMatches: b.counter("akeval.keyword.matches",
			"Detected keywords per analysis pass by match kind."),
	}
	if b.err != nil {
		return nil, b.err
	}

	var err error
	if m.ActiveSessions, err = b.meter.Int64UpDownCounter("akeval.active_sessions",
		metric.WithDescription("Sessions with accepted audio that were not yet cleared."),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = b.meter.Float64Histogram("akeval.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared [Metrics] built on the global meter
// provider, creating it on first use. Panics if instrument creation fails,
// which the global provider does not do.
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

// RecordProviderRequest increments the request counter with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError increments the error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordKeywordMatches records detected keyword counts for one pass. Zero
// counts are skipped so quiet passes do not create empty series.
func (m *Metrics) RecordKeywordMatches(ctx context.Context, exact, fuzzy int64) {
	if exact > 0 {
		m.KeywordMatches.Add(ctx, exact,
			metric.WithAttributes(attribute.String("kind", "exact")))
	}
	if fuzzy > 0 {
		m.KeywordMatches.Add(ctx, fuzzy,
			metric.WithAttributes(attribute.String("kind", "fuzzy")))
	}
}
