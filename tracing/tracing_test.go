package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/bayes/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestContextPropagation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := StartSpan(context.Background(), "shard")
	SetError(span, errors.New("shard failed"))
	span.End()

	carrier := InjectContext(ctx)
	if carrier["traceparent"] == "" {
		t.Fatalf("InjectContext() = %v, want traceparent", carrier)
	}
	restored := ExtractContext(context.Background(), carrier)
	want := trace.SpanContextFromContext(ctx).TraceID()
	if got := trace.SpanContextFromContext(restored).TraceID(); got != want {
		t.Errorf("ExtractContext() trace id = %s, want %s", got, want)
	}
}

func TestEndRecordsError(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	_, span := StartSpan(context.Background(), "driver.ClassifyShard", Shard(2, "test/a.txt", 1)...)
	err := errors.New("storage unavailable")
	End(span, &err)

	ro, ok := span.(sdktrace.ReadOnlySpan)
	if !ok {
		t.Fatalf("span type %T is not a ReadOnlySpan", span)
	}
	if ro.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", ro.Status().Code)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ro.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[ShardKey].AsInt64() != 2 || attrs[AttemptKey].AsInt64() != 1 || attrs[ObjectKey].AsString() != "test/a.txt" {
		t.Errorf("attributes = %v", ro.Attributes())
	}
}
