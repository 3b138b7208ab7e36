// Package tracing installs the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config is read from OTEL_*. Tracing stays a no-op without an endpoint.
type Config struct {
	ExporterOtlpEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ExporterOtlpInsecure bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	ServiceName          string  `envconfig:"OTEL_SERVICE_NAME" default:"intake"`
	SampleRate           float64 `envconfig:"OTEL_SAMPLE_RATE" default:"1"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.ExporterOtlpEndpoint) != ""
}

// Shutdown flushes pending spans.
type Shutdown func(ctx context.Context) error

// Init sets the global tracer provider and returns its shutdown. When
// tracing is disabled the global no-op provider is left in place.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpointHost(cfg.ExporterOtlpEndpoint))}
	if cfg.ExporterOtlpInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.ServiceName)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func newResource(service string) *resource.Resource {
	if service == "" {
		service = "intake"
	}
	return resource.NewSchemaless(attribute.String("service.name", service))
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// endpointHost accepts both "host:port" and a URL; the exporter wants the
// former.
func endpointHost(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
