// Package sandbox 实现来宾代码的隔离执行。
// 每一代（generation）对应一个从零构建的独立执行上下文：宿主从不增量
// 修补上下文，因为部分重载可能让旧代的遗留工作把事件归到新代名下。
// 来宾没有任何触达宿主状态的路径，唯一的出口是 Launch 时绑定的发射通道。
package sandbox

import (
	"context"

	"github.com/lumenlab/lumen/internal/domain"
)

// EmitFunc 是沙箱向宿主发射结构化事件的唯一通道。
// 传输层（宿主侧）负责为事件盖上代标识。
type EmitFunc func(domain.Envelope)

// Engine 抽象一种隔离执行引擎。
// 实现必须保证：每次 Launch 创建全新的上下文，来宾代码无法访问
// 宿主内存、存储或网络，事件只通过 emit 离开上下文。
type Engine interface {
	// Name 返回引擎标识（用于指标标签和状态上报）。
	Name() string

	// Launch 在全新的隔离上下文中异步执行文档的可执行区域。
	// 返回错误表示上下文初始化失败（宿主侧故障）；
	// 来宾自身的运行时错误不是 Launch 错误，而是通过 emit
	// 转发恰好一条 error 事件。
	Launch(ctx context.Context, doc *domain.RenderedDocument, emit EmitFunc) (Instance, error)
}

// Instance 表示一个正在运行（或已结束）的隔离上下文。
type Instance interface {
	// Done 在来宾的首次同步执行结束后关闭。
	// 同步死循环的来宾永远不关闭它；这样的上下文在被取代时由
	// Close 中断，其后续输出按过期代丢弃。
	Done() <-chan struct{}

	// Err 返回启动后阶段的初始化故障（Done 关闭后有效）。
	// 来宾运行时错误不通过 Err 暴露。
	Err() error

	// Close 中断并释放上下文。可以在任意时刻调用，幂等。
	Close() error
}
