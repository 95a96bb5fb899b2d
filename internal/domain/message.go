// Package domain 定义了实时预览服务的核心领域模型。
package domain

import "time"

// 跨边界消息的判别标签。
const (
	// KindConsole 来宾 console 调用产生的事件
	KindConsole = "console"
	// KindError 来宾抛出异常或未捕获错误产生的事件
	KindError = "error"
)

// Envelope 是沙箱与宿主之间唯一的消息载体（判别联合）。
// Generation 由宿主侧传输层在事件离开沙箱时盖戳，
// 来宾代码自身无法伪造或省略它。
type Envelope struct {
	Generation  string `json:"generation"`
	Kind        string `json:"kind"`
	Method      string `json:"method,omitempty"`
	Message     string `json:"message"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// RenderedDocument 是一代沙箱对应的完整可执行文档。
// Text 是交给预览面的完整文档文本；Preamble 与 Script 是文档内
// 可执行区域的原文，按文档顺序 Preamble 先于 Script。
// 文档一经装配不可变，重建时整体替换，从不增量修补。
type RenderedDocument struct {
	Text        string
	Preamble    string
	Script      string
	AssembledAt time.Time
}

// SchedulerState 表示更新调度器的状态机状态。
type SchedulerState string

const (
	// StateIdle 空闲，没有挂起的编辑
	StateIdle SchedulerState = "idle"
	// StatePending 防抖计时器已武装，等待编辑静默期结束
	StatePending SchedulerState = "pending"
	// StateBuilding 正在装配文档并加载新一代沙箱
	StateBuilding SchedulerState = "building"
)
