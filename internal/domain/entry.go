// Package domain 定义了实时预览服务的核心领域模型。
package domain

// Severity 表示一条控制台条目的严重级别。
type Severity string

const (
	// SeverityInfo 普通输出（console.log / console.info / console.debug）
	SeverityInfo Severity = "info"
	// SeverityWarn 警告输出（console.warn）
	SeverityWarn Severity = "warn"
	// SeverityError 错误输出（来宾异常、未捕获错误、宿主故障）
	SeverityError Severity = "error"
)

// IsValid 判断严重级别是否受支持。
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError:
		return true
	}
	return false
}

// SeverityFromMethod 将来宾侧 console 方法名映射为严重级别。
// 未知方法名按规约降级为 info，而不是作为畸形事件丢弃。
func SeverityFromMethod(method string) Severity {
	switch method {
	case "warn":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// ConsoleEntry 表示一条规范化后的、面向最终用户展示的控制台条目。
// 条目一旦追加到 Sink 就不再被修改。
type ConsoleEntry struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// BuildMetric 表示一次完成构建的延迟采样。
// 延迟从构建开始（防抖窗口结束）计时到来宾首次同步执行结束。
type BuildMetric struct {
	Generation  string `json:"generation"`
	LatencyMs   int64  `json:"latency_ms"`
	TimestampMs int64  `json:"timestamp_ms"`
}
