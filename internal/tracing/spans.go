package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartGenerationSpan creates a client span around one vendor generation call.
func StartGenerationSpan(ctx context.Context, providerName, family, model string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "generation."+family,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("generation.provider", providerName),
			attribute.String("generation.family", family),
			attribute.String("generation.model", model),
		),
	)
}

// StartResolveSpan creates a child span for provider resolution.
func StartResolveSpan(ctx context.Context, preferred string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "registry.resolve",
		trace.WithAttributes(attribute.String("registry.preferred", preferred)),
	)
}

// InjectHeaders injects the current trace context (traceparent, tracestate)
// into the given HTTP request headers so the vendor can continue the trace.
func InjectHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// Transport wraps an http.RoundTripper so that every outgoing request
// carries the trace context of its request context.
type Transport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if trace.SpanFromContext(req.Context()).SpanContext().IsValid() {
		req = req.Clone(req.Context())
		InjectHeaders(req.Context(), req)
	}
	return base.RoundTrip(req)
}

// SetRequestAttributes adds caller attribution to the current span.
func SetRequestAttributes(ctx context.Context, organizationID, agentID string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("request.organization_id", organizationID),
		attribute.String("request.agent_id", agentID),
	)
}

// SetUsageAttributes adds token usage to the current span.
func SetUsageAttributes(ctx context.Context, tokensIn, tokensOut int, cost float64, estimated bool) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("usage.tokens_in", tokensIn),
		attribute.Int("usage.tokens_out", tokensOut),
		attribute.Float64("usage.cost_usd", cost),
		attribute.Bool("usage.estimated", estimated),
	)
}

// RecordError records an error on the current span and marks it failed.
func RecordError(ctx context.Context, err error) {
	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
