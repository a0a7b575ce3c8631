// Package observe provides application-wide observability primitives for
// SkillProbe: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all SkillProbe metrics.
const meterName = "github.com/MrWong99/skillprobe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM latency. Use with attribute:
	//   attribute.String("stage", "cleanup"|"detect"|"extract"|"questions")
	LLMDuration metric.Float64Histogram

	// AnswerDuration tracks the full transcribe, clean, detect path for one
	// answer or live chunk.
	AnswerDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// LanguageRetries counts transcriptions re-run with the fallback
	// language because the detected language was unsupported.
	LanguageRetries metric.Int64Counter

	// Chunks counts segmenter flushes. Use with attributes:
	//   attribute.String("reason", ...), attribute.String("outcome", "emitted"|"discarded")
	Chunks metric.Int64Counter

	// FramesDropped counts capture frames dropped because the live queue was full.
	FramesDropped metric.Int64Counter

	// SkillsConfirmed counts skills confirmed for the first time in a session.
	SkillsConfirmed metric.Int64Counter

	// Answers counts processed answers. Use with attribute:
	//   attribute.String("source", "rest"|"live")
	Answers metric.Int64Counter

	// SessionsCompleted counts completed interviews. Use with attribute:
	//   attribute.String("reason", "coverage"|"questions"|"deadline"|"manual"|"expired")
	SessionsCompleted metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of interview sessions in the registry.
	ActiveSessions metric.Int64UpDownCounter

	// LiveStreams tracks the number of connected live audio streams.
	LiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote ASR and LLM round trips.
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
	if met.STTDuration, err = m.Float64Histogram("skillprobe.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("skillprobe.llm.duration",
		metric.WithDescription("Latency of LLM calls by stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnswerDuration, err = m.Float64Histogram("skillprobe.answer.duration",
		metric.WithDescription("Latency of processing one answer end to end."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("skillprobe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.LanguageRetries, err = m.Int64Counter("skillprobe.transcription.language_retries",
		metric.WithDescription("Transcriptions repeated with the fallback language."),
	); err != nil {
		return nil, err
	}
	if met.Chunks, err = m.Int64Counter("skillprobe.segmenter.chunks",
		metric.WithDescription("Segmenter flushes by reason and outcome."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("skillprobe.live.frames_dropped",
		metric.WithDescription("Capture frames dropped on a full live queue."),
	); err != nil {
		return nil, err
	}
	if met.SkillsConfirmed, err = m.Int64Counter("skillprobe.skills.confirmed",
		metric.WithDescription("Skills confirmed for the first time in a session."),
	); err != nil {
		return nil, err
	}
	if met.Answers, err = m.Int64Counter("skillprobe.answers",
		metric.WithDescription("Processed answers by source."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("skillprobe.sessions.completed",
		metric.WithDescription("Completed interview sessions by reason."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("skillprobe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("skillprobe.active_sessions",
		metric.WithDescription("Number of interview sessions in memory."),
	); err != nil {
		return nil, err
	}
	if met.LiveStreams, err = m.Int64UpDownCounter("skillprobe.live_streams",
		metric.WithDescription("Number of connected live audio streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("skillprobe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
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

// RecordChunk records one segmenter flush.
func (m *Metrics) RecordChunk(ctx context.Context, reason string, emitted bool) {
	outcome := "discarded"
	if emitted {
		outcome = "emitted"
	}
	m.Chunks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordSessionCompleted records a finished interview.
func (m *Metrics) RecordSessionCompleted(ctx context.Context, reason string) {
	m.SessionsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
