// Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "hookgen"

type TracingConfig struct {
	Enabled bool

	// Collector endpoint. When empty the exporter reads
	// OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string

	// "grpc" or "http". Defaults to "grpc".
	Protocol string

	ServiceName    string
	ServiceVersion string

	// Fraction of traces to sample. Negative means unset
	// and defaults to 1.
	SampleRate float64

	Insecure bool
}

// Initialized to a no-op tracer. Call InitTracing to
// export spans.
var Tracer trace.Tracer = otel.Tracer(serviceName)

var tracerProvider *sdktrace.TracerProvider

// Applies defaults and normalizes the protocol.
func (cfg TracingConfig) withDefaults() TracingConfig {
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "unknown"
	}
	switch cfg.Protocol {
	case "":
		cfg.Protocol = "grpc"
	case "http/protobuf":
		cfg.Protocol = "http"
	}
	if cfg.SampleRate < 0 {
		cfg.SampleRate = 1.0
	}
	return cfg
}

// Returns a shutdown function that flushes pending
// spans. It must be called on exit.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		Tracer = otel.Tracer(serviceName)
		return func(context.Context) error { return nil }, nil
	}
	cfg = cfg.withDefaults()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("service.namespace", serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s (use 'grpc' or 'http')", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tracerProvider.Tracer(cfg.ServiceName)

	slog.Info("tracing-initialized",
		"endpoint", cfg.Endpoint,
		"protocol", cfg.Protocol,
		"sample_rate", cfg.SampleRate,
	)
	return func(ctx context.Context) error {
		slog.Info("tracing-shutdown")
		return tracerProvider.Shutdown(ctx)
	}, nil
}

// Reads:
//   - OTEL_ENABLED: "true" to enable tracing
//   - OTEL_EXPORTER_OTLP_ENDPOINT
//   - OTEL_EXPORTER_OTLP_PROTOCOL: "grpc", "http", or "http/protobuf"
//   - OTEL_SERVICE_NAME
//   - OTEL_TRACE_SAMPLE_RATE: 0.0-1.0
//   - OTEL_EXPORTER_OTLP_INSECURE: "true" to disable TLS
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     os.Getenv("OTEL_ENABLED") == "true",
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:    os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		ServiceName: os.Getenv("OTEL_SERVICE_NAME"),
		Insecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		SampleRate:  -1.0,
	}
	if rate := os.Getenv("OTEL_TRACE_SAMPLE_RATE"); rate != "" {
		var r float64
		if _, err := fmt.Sscanf(rate, "%f", &r); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRate = r
		}
	}
	return cfg
}

// Starts a span named name with the given attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
