package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracerWithPropagator(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	})
	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]interface{} {
	attrs := map[string]interface{}{}
	for _, attr := range s.Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	return attrs
}

func TestStartGenerationSpan(t *testing.T) {
	exporter := setupTestTracerWithPropagator(t)

	ctx, span := StartGenerationSpan(context.Background(), "OpenAI-Compat", "openai", "gpt-4")
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Error("expected valid span in context")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Name != "generation.openai" {
		t.Errorf("expected span name 'generation.openai', got %q", spans[0].Name)
	}
	if spans[0].SpanKind != trace.SpanKindClient {
		t.Errorf("expected SpanKindClient, got %v", spans[0].SpanKind)
	}

	found := spanAttrs(spans[0])
	if found["generation.provider"] != "OpenAI-Compat" {
		t.Errorf("generation.provider = %v", found["generation.provider"])
	}
	if found["generation.model"] != "gpt-4" {
		t.Errorf("generation.model = %v", found["generation.model"])
	}
}

func TestStartResolveSpan(t *testing.T) {
	exporter := setupTestTracerWithPropagator(t)

	_, span := StartResolveSpan(context.Background(), "Gemini")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if spans[0].Name != "registry.resolve" {
		t.Errorf("expected span name 'registry.resolve', got %q", spans[0].Name)
	}
}

func TestInjectHeaders(t *testing.T) {
	setupTestTracerWithPropagator(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	defer span.End()

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	InjectHeaders(ctx, req)

	if req.Header.Get("traceparent") == "" {
		t.Error("expected traceparent header to be injected")
	}
}

func TestTransport_InjectsTraceparent(t *testing.T) {
	setupTestTracerWithPropagator(t)

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	ctx, span := Tracer().Start(context.Background(), "parent")
	defer span.End()

	client := &http.Client{Transport: &Transport{}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got == "" {
		t.Fatal("expected traceparent header at the server")
	}
	if got[3:35] != span.SpanContext().TraceID().String() {
		t.Errorf("traceparent %q does not carry parent trace ID", got)
	}
	if req.Header.Get("traceparent") != "" {
		t.Error("original request headers must not be mutated")
	}
}

func TestTransport_NoSpanNoHeader(t *testing.T) {
	setupTestTracerWithPropagator(t)

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Base: http.DefaultTransport}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got != "" {
		t.Errorf("expected no traceparent without an active span, got %q", got)
	}
}

func TestSetRequestAttributes(t *testing.T) {
	exporter := setupTestTracerWithPropagator(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	SetRequestAttributes(ctx, "org-1", "agent-7")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	attrs := spanAttrs(spans[0])
	if attrs["request.organization_id"] != "org-1" {
		t.Errorf("expected request.organization_id 'org-1', got %v", attrs["request.organization_id"])
	}
	if attrs["request.agent_id"] != "agent-7" {
		t.Errorf("expected request.agent_id 'agent-7', got %v", attrs["request.agent_id"])
	}
}

func TestSetUsageAttributes(t *testing.T) {
	exporter := setupTestTracerWithPropagator(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	SetUsageAttributes(ctx, 100, 50, 0.00025, true)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	attrs := spanAttrs(spans[0])
	if attrs["usage.tokens_in"] != int64(100) {
		t.Errorf("expected usage.tokens_in 100, got %v", attrs["usage.tokens_in"])
	}
	if attrs["usage.tokens_out"] != int64(50) {
		t.Errorf("expected usage.tokens_out 50, got %v", attrs["usage.tokens_out"])
	}
	if attrs["usage.estimated"] != true {
		t.Errorf("expected usage.estimated true, got %v", attrs["usage.estimated"])
	}
}

func TestRecordError_NilDoesNotPanic(t *testing.T) {
	RecordError(context.Background(), nil)
}

func TestRecordError_RecordsOnSpan(t *testing.T) {
	exporter := setupTestTracerWithPropagator(t)

	ctx, span := Tracer().Start(context.Background(), "test")
	RecordError(ctx, errors.New("vendor unavailable"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected at least one span")
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected span status Error, got %v", spans[0].Status.Code)
	}
}
