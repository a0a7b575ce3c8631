package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig selects how interview telemetry is recorded and exported.
type ProviderConfig struct {
	// ServiceName labels every metric and span. Default: "skillprobe".
	ServiceName string

	// ServiceVersion is the build version of the binary.
	ServiceVersion string

	// SampleRatio is the share of root traces kept, clamped to [0, 1].
	// Requests that arrive with a sampled parent are always kept.
	SampleRatio float64

	// LogSpans adds an exporter that writes finished spans to the default
	// logger at debug level.
	LogSpans bool

	// TraceExporter receives finished spans in batches. Optional.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider registers global meter and tracer providers built from cfg.
// Metrics are exposed through the Prometheus default registry, which is
// what /metrics serves. The returned function flushes and stops both.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tp := newTracerProvider(cfg, res)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newResource(ctx context.Context, cfg ProviderConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "skillprobe"
	}
	attrs, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), attrs)
}

// newTracerProvider builds the tracer provider described by cfg without
// registering it globally.
func newTracerProvider(cfg ProviderConfig, res *resource.Resource) *sdktrace.TracerProvider {
	ratio := min(max(cfg.SampleRatio, 0), 1)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if cfg.TraceExporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	if cfg.LogSpans {
		opts = append(opts, sdktrace.WithSyncer(LogExporter{}))
	}
	return sdktrace.NewTracerProvider(opts...)
}
