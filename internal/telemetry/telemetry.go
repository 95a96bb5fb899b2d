// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 追踪数据通过 OTLP gRPC 导出到兼容后端（如 Tempo、Jaeger），
// 采样率可配置；未启用时所有操作降级为空操作。
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config 定义遥测配置。
type Config struct {
	// Enabled 控制是否启用遥测，设为 false 时跳过追踪器初始化
	Enabled bool `yaml:"enabled"`
	// Endpoint 指定 OTLP 接收器的 gRPC 端点地址，例如 "tempo:4317"
	Endpoint string `yaml:"endpoint"`
	// ServiceName 标识当前服务，作为追踪数据的服务标识
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，取值范围 0.0 到 1.0（1.0 表示 100% 采样）
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 标识运行环境，如 production、development
	Environment string `yaml:"environment"`
}

// Telemetry 持有追踪提供者与追踪器实例，管理追踪数据的生命周期。
type Telemetry struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New 根据配置创建 Telemetry 实例。
// 未启用时返回仅含空操作追踪器的实例；启用时建立到 OTLP 接收器的
// gRPC 连接，配置采样器，并注册全局追踪提供者与上下文传播器。
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{
			config: cfg,
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "lumen-preview"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 0.1
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "tempo:4317"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 内网通信场景，使用不安全凭据并阻塞到连接建立
	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		// 基于 TraceID 的比率采样，同一追踪内的采样决策一致
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		config:         cfg,
		tracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
	}, nil
}

// Tracer 返回用于创建 Span 的追踪器实例。
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown 刷新所有待发送的追踪数据并释放资源。
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// IsEnabled 返回遥测是否已启用。
func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled
}

// StartSpan 创建一个新的 Span，自动成为上下文中当前 Span 的子 Span。
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("lumen").Start(ctx, name, opts...)
}

// TraceIDFromContext 从上下文中提取 Trace ID，无效时返回空字符串。
func TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// RecordError 在当前 Span 上记录错误。
func RecordError(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
}
