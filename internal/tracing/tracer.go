package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/welinkai/llmgateway/internal/config"
)

const tracerName = "github.com/welinkai/llmgateway"

// Tracer returns the global tracer for gateway instrumentation.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Options selects the exporter and sampling for Init.
type Options struct {
	ServiceName string
	Version     string
	Exporter    string // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string
	SampleRate  float64
	Insecure    bool

	// SpanExporter, when set, replaces the named exporter.
	SpanExporter sdktrace.SpanExporter
}

// OptionsFromConfig maps the [tracing] config section onto Options.
func OptionsFromConfig(tc config.TracingConfig, version string) Options {
	return Options{
		ServiceName: tc.ServiceName,
		Version:     version,
		Exporter:    tc.Exporter,
		Endpoint:    tc.Endpoint,
		SampleRate:  tc.SampleRate,
		Insecure:    tc.Insecure,
	}
}

// Init registers a global TracerProvider and the W3C trace-context
// propagator. The returned shutdown flushes pending spans; callers defer it.
func Init(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	name := opts.ServiceName
	if name == "" {
		name = config.DefaultTracingServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	exp := opts.SpanExporter
	if exp == nil {
		exp, err = newExporter(ctx, opts.Exporter, opts.Endpoint, opts.Insecure)
		if err != nil {
			return nil, fmt.Errorf("creating otel exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(opts.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// samplerFor honours an upstream sampling decision and otherwise samples
// root spans at rate, clamped to [0, 1].
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func newExporter(ctx context.Context, name, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp-grpc":
		var opts []otlptracegrpc.Option
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "otlp-http":
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter %q (supported: %v)", name, config.ValidTracingExporters)
	}
}
