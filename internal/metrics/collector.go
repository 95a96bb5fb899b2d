// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义预览管线的关键指标（构建、控制台、中继、沙箱代），
// 便于在各模块复用并保持标签一致。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 封装预览服务运行时指标集合。
// 所有字段均为 Prometheus 指标类型，通过辅助方法更新指标值。
// 允许以 nil *Metrics 调用全部辅助方法（指标被禁用时为空操作）。
type Metrics struct {
	// ========== 构建相关指标 ==========

	// BuildsTotal 构建总次数计数器
	// 标签: status (completed / failed)
	BuildsTotal *prometheus.CounterVec

	// BuildLatency 构建延迟直方图（单位：毫秒），
	// 从防抖窗口结束计时到来宾首次同步执行结束
	// 桶边界: 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000 ms
	BuildLatency prometheus.Histogram

	// ========== 中继与控制台指标 ==========

	// ConsoleEntriesTotal 追加到 Sink 的条目计数器
	// 标签: severity
	ConsoleEntriesTotal *prometheus.CounterVec

	// RelayDroppedTotal 中继丢弃的事件计数器
	// 标签: reason (stale / malformed)
	RelayDroppedTotal *prometheus.CounterVec

	// ========== 沙箱相关指标 ==========

	// GenerationsTotal 创建过的沙箱代计数器
	// 标签: engine
	GenerationsTotal *prometheus.CounterVec

	// StreamSubscribers 当前控制台 WebSocket 订阅者数量
	StreamSubscribers prometheus.Gauge
}

// 中继丢弃原因标签值。
const (
	ReasonStale     = "stale"
	ReasonMalformed = "malformed"
)

// NewMetrics 以给定命名空间创建并注册全部指标。
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lumen"
	}

	return &Metrics{
		BuildsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of preview builds by status",
		}, []string{"status"}),

		BuildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_latency_ms",
			Help:      "Preview build latency in milliseconds",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),

		ConsoleEntriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "console_entries_total",
			Help:      "Total console entries appended to the sink by severity",
		}, []string{"severity"}),

		RelayDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Total guest events dropped by the relay by reason",
		}, []string{"reason"}),

		GenerationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total sandbox generations created by engine",
		}, []string{"engine"}),

		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Current number of console stream subscribers",
		}),
	}
}

// RecordBuild 记录一次构建结果及其延迟。
func (m *Metrics) RecordBuild(status string, latencyMs float64) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		m.BuildLatency.Observe(latencyMs)
	}
}

// RecordConsoleEntry 记录一条追加到 Sink 的条目。
func (m *Metrics) RecordConsoleEntry(severity string) {
	if m == nil {
		return
	}
	m.ConsoleEntriesTotal.WithLabelValues(severity).Inc()
}

// RecordRelayDrop 记录一次中继丢弃。
func (m *Metrics) RecordRelayDrop(reason string) {
	if m == nil {
		return
	}
	m.RelayDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordGeneration 记录一次沙箱代创建。
func (m *Metrics) RecordGeneration(engine string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(engine).Inc()
}

// StreamSubscribed 登记一个新的流订阅者。
func (m *Metrics) StreamSubscribed() {
	if m == nil {
		return
	}
	m.StreamSubscribers.Inc()
}

// StreamUnsubscribed 注销一个流订阅者。
func (m *Metrics) StreamUnsubscribed() {
	if m == nil {
		return
	}
	m.StreamSubscribers.Dec()
}
