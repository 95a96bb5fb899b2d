// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 本文件实现日志与追踪的集成：通过 Logrus Hook 把追踪上下文
// （Trace ID、Span ID）自动注入日志条目。
package telemetry

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// LogrusHook 把有效追踪上下文的 trace_id、span_id 字段注入日志条目。
type LogrusHook struct{}

// NewLogrusHook 创建日志钩子，添加到 Logger 即启用注入。
func NewLogrusHook() *LogrusHook {
	return &LogrusHook{}
}

// Levels 在所有级别触发，保证任何日志都能关联追踪。
func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在条目写出前注入追踪字段；条目无上下文或 Span 无效时跳过。
func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		return nil
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}

	spanCtx := span.SpanContext()
	entry.Data["trace_id"] = spanCtx.TraceID().String()
	entry.Data["span_id"] = spanCtx.SpanID().String()
	if spanCtx.IsSampled() {
		entry.Data["trace_sampled"] = true
	}
	return nil
}

// LoggerWithTraceContext 返回一个带追踪上下文字段的日志条目。
func LoggerWithTraceContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logrus.NewEntry(logger)
	}

	spanCtx := span.SpanContext()
	return logger.WithFields(logrus.Fields{
		"trace_id":      spanCtx.TraceID().String(),
		"span_id":       spanCtx.SpanID().String(),
		"trace_sampled": spanCtx.IsSampled(),
	})
}
