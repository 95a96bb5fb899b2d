// Package domain 定义了实时预览服务的核心领域模型。
package domain

import "errors"

// 领域错误定义
// 这些错误用于在应用程序的不同层之间传递业务逻辑相关的错误信息。

var (
	// ========== 沙箱相关错误 ==========

	// ErrSandboxFault 表示隔离执行上下文初始化失败（宿主侧故障，区别于来宾运行时错误）
	ErrSandboxFault = errors.New("sandbox failed to initialize")
	// ErrEngineClosed 表示沙箱宿主已关闭，不再接受加载请求
	ErrEngineClosed = errors.New("sandbox host is closed")
	// ErrInvalidEngine 表示配置指定的执行引擎不受支持
	ErrInvalidEngine = errors.New("invalid engine: must be goja or wasm")

	// ========== 中继相关错误 ==========

	// ErrGenerationStale 表示事件携带的代标识不是当前存活的一代
	ErrGenerationStale = errors.New("event generation is stale")
	// ErrMalformedEvent 表示入站消息结构不完整，被静默丢弃并计数
	ErrMalformedEvent = errors.New("malformed guest event")

	// ========== 编辑相关错误 ==========

	// ErrFragmentTooLarge 表示某个源文本片段超出大小限制
	ErrFragmentTooLarge = errors.New("source fragment exceeds maximum size")
	// ErrNoDocument 表示尚未完成任何一次构建，没有可用的预览文档
	ErrNoDocument = errors.New("no document has been built yet")
)
