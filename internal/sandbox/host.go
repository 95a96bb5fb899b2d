// Package sandbox 实现来宾代码的隔离执行。
// 本文件实现沙箱宿主：同一时刻恰好拥有一个存活的隔离上下文。
package sandbox

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ReadyFunc 在某代来宾的首次同步执行结束后调用。
type ReadyFunc func(generation string)

// FaultFunc 在某代上下文初始化失败后调用（区别于来宾运行时错误）。
type FaultFunc func(generation string, err error)

// Host 拥有并管理唯一的隔离执行上下文。
// 每次 Load 先完整处置前一代再从零实例化新一代，从不增量修补：
// 部分重载可能让旧代的遗留定时器/监听器把事件归到新代名下。
// 存活代在 Load 时即推进，因此来宾初始执行期间的输出就能通过中继。
type Host struct {
	engine  Engine
	accept  EmitFunc
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu     sync.Mutex
	live   string
	inst   Instance
	cancel context.CancelFunc
	closed bool

	onReady ReadyFunc
	onFault FaultFunc
}

// NewHost 创建沙箱宿主。accept 通常是中继的 Accept 方法；
// 宿主在事件离开沙箱时为其盖上代标识。
func NewHost(engine Engine, accept EmitFunc, m *metrics.Metrics, logger *logrus.Logger) *Host {
	return &Host{
		engine:  engine,
		accept:  accept,
		metrics: m,
		logger:  logger,
	}
}

// OnReady 注册就绪回调。必须在第一次 Load 之前调用。
func (h *Host) OnReady(fn ReadyFunc) { h.onReady = fn }

// OnFault 注册故障回调。必须在第一次 Load 之前调用。
func (h *Host) OnFault(fn FaultFunc) { h.onFault = fn }

// Live 返回当前存活的一代标识；没有存活代时返回空字符串。
func (h *Host) Live() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Engine 返回宿主使用的引擎名。
func (h *Host) Engine() string { return h.engine.Name() }

// Load 处置前一代（如果有）并从给定文档实例化全新的一代。
// 返回新铸的代标识。初始化失败时返回错误，不会调用 onFault，
// 调用方（调度器）对同步失败自行走故障路径。
// 启动后阶段的初始化失败通过 onFault 异步上报。
func (h *Host) Load(doc *domain.RenderedDocument) (string, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", domain.ErrEngineClosed
	}

	h.disposeLocked()

	gen := uuid.NewString()
	h.live = gen

	ctx, cancel := context.WithCancel(context.Background())
	emit := func(env domain.Envelope) {
		// 传输层在此为事件盖上来源代标识，来宾无法伪造
		env.Generation = gen
		h.accept(env)
	}

	inst, err := h.engine.Launch(ctx, doc, emit)
	if err != nil {
		cancel()
		h.mu.Unlock()
		h.logger.WithError(err).WithField("generation", gen).Error("Sandbox context failed to initialize")
		return gen, err
	}

	h.inst = inst
	h.cancel = cancel
	h.metrics.RecordGeneration(h.engine.Name())
	h.logger.WithFields(logrus.Fields{
		"generation": gen,
		"engine":     h.engine.Name(),
	}).Debug("Sandbox generation loaded")
	h.mu.Unlock()

	go h.watch(gen, inst)
	return gen, nil
}

// Dispose 撕毁当前存活的上下文及其全部挂起工作。
func (h *Host) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposeLocked()
	h.live = ""
}

// Close 处置当前上下文并拒绝后续 Load。
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposeLocked()
	h.live = ""
	h.closed = true
}

// disposeLocked 在持锁状态下撕毁当前实例。
func (h *Host) disposeLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	if h.inst != nil {
		h.inst.Close()
		h.inst = nil
	}
}

// watch 等待一代执行结束并分发就绪/故障回调。
// 回调在不持有宿主锁的情况下调用；被取代的一代的结局直接丢弃。
func (h *Host) watch(gen string, inst Instance) {
	<-inst.Done()

	if h.Live() != gen {
		return
	}

	if err := inst.Err(); err != nil {
		h.logger.WithError(err).WithField("generation", gen).Error("Sandbox generation faulted")
		if h.onFault != nil {
			h.onFault(gen, err)
		}
		return
	}

	if h.onReady != nil {
		h.onReady(gen)
	}
}
