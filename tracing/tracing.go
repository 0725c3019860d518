// Package tracing 为训练与分片分类流程提供 OpenTelemetry 追踪.
// 未启用时沿用全局 noop provider，StartSpan 与 End 照常可用.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/bayes/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/wyfcoding/bayes"

// 分类流程使用的 Span 属性键.
const (
	AlgorithmKey = attribute.Key("bayes.algorithm")
	ShardKey     = attribute.Key("bayes.shard")
	AttemptKey   = attribute.Key("bayes.shard.attempt")
	ObjectKey    = attribute.Key("bayes.object")
	PrefixKey    = attribute.Key("bayes.prefix")
	OffsetKey    = attribute.Key("messaging.kafka.offset")
)

// Shard 返回描述一次分片尝试的属性.
func Shard(id int, object string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{ShardKey.Int(id), ObjectKey.String(object), AttemptKey.Int(attempt)}
}

// InitTracer 按配置安装 OTLP gRPC exporter，返回的函数负责刷新并关闭.
func InitTracer(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerRatio))),
	)
	otel.SetTracerProvider(tp)
	// Kafka 消息头只携带 traceparent，不需要 baggage.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	slog.Info("tracing enabled", "service", cfg.ServiceName, "endpoint", cfg.OTLPEndpoint, "ratio", cfg.SamplerRatio)
	return tp.Shutdown, nil
}

// StartSpan 开始一个 Span，调用方负责 End.
//
//nolint:spancheck // 生命周期由调用方管理.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError 记录错误并把 Span 标记为失败，err 为 nil 时不做任何事.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// End 记录 *errp 后结束 Span，配合命名返回值在 defer 中使用.
func End(span trace.Span, errp *error) {
	if errp != nil {
		SetError(span, *errp)
	}
	span.End()
}

// InjectContext 把追踪上下文写成键值对，供 Kafka 消息头使用.
func InjectContext(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// ExtractContext 从消息头键值对还原追踪上下文.
func ExtractContext(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}
