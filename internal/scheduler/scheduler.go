// Package scheduler 实现去抖的更新调度。
// 编辑流经一个固定的去抖窗口合并为一次重建：窗口内的任意数量编辑
// 只产生一次装配与加载。构建期间到达的编辑照常进入窗口，窗口到期
// 即取代在途的一代，因此卡死的来宾（死循环）不会阻塞后续更新。
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/lumenlab/lumen/internal/assembler"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/events"
	"github.com/lumenlab/lumen/internal/metrics"
	"github.com/lumenlab/lumen/internal/relay"
	"github.com/lumenlab/lumen/internal/sandbox"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDebounce 是编辑到重建的默认去抖窗口。
	DefaultDebounce = 500 * time.Millisecond
	// DefaultMetricHistory 是保留的构建指标条数上限。
	DefaultMetricHistory = 100
)

// faultMessage 是沙箱初始化失败时写入控制台的宿主侧条目。
// 故障细节只进日志，不暴露给来宾可见的控制台。
const faultMessage = "preview sandbox failed to initialize"

// Config 是调度器的运行参数。
type Config struct {
	Debounce      time.Duration
	MetricHistory int
}

// Scheduler 把编辑事件合并为沙箱重建。
// 所有状态由单一互斥锁保护；宿主的就绪/故障回调经 buildGen
// 匹配后才生效，被窗口取代的一代的迟到结局直接忽略。
type Scheduler struct {
	cfg     Config
	host    *sandbox.Host
	relay   *relay.Relay
	metrics *metrics.Metrics
	bus     *events.EventBus
	logger  *logrus.Logger

	mu         sync.Mutex
	latest     domain.SourceSet
	hasSource  bool
	doc        domain.RenderedDocument
	hasDoc     bool
	built      domain.SourceSet
	builtOK    bool
	timer      *time.Timer
	armed      bool
	buildGen   string
	buildStart time.Time
	history    []domain.BuildMetric
	closed     bool
}

// New 创建调度器。cfg 的零值字段回落到默认值。
func New(cfg Config, host *sandbox.Host, r *relay.Relay, m *metrics.Metrics, bus *events.EventBus, logger *logrus.Logger) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MetricHistory <= 0 {
		cfg.MetricHistory = DefaultMetricHistory
	}
	return &Scheduler{
		cfg:     cfg,
		host:    host,
		relay:   r,
		metrics: m,
		bus:     bus,
		logger:  logger,
	}
}

// Start 向宿主注册构建结局回调。必须在第一次 Edit 之前调用。
func (s *Scheduler) Start() {
	s.host.OnReady(s.onReady)
	s.host.OnFault(s.onFault)
}

// Stop 停止调度器。停止后的编辑被接受但不再触发重建。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
}

// Edit 接受一组新的源文本并（重新）武装去抖窗口。
// 窗口内的后续编辑覆盖之前的编辑，只有窗口到期时的最新
// 内容会被装配执行。
func (s *Scheduler) Edit(set domain.SourceSet) error {
	if err := set.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = set
	s.hasSource = true
	if s.closed {
		return nil
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
	} else {
		s.timer.Reset(s.cfg.Debounce)
	}
	s.armed = true
	return nil
}

// Source 返回最近接受的源文本集合。
func (s *Scheduler) Source() (domain.SourceSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasSource
}

// Document 返回最近装配的一代文档。
func (s *Scheduler) Document() (domain.RenderedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDoc {
		return domain.RenderedDocument{}, domain.ErrNoDocument
	}
	return s.doc, nil
}

// State 返回调度器当前所处的状态。
func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Builds 返回已完成构建的延迟指标，最新的在末尾。
func (s *Scheduler) Builds() []domain.BuildMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.BuildMetric, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Scheduler) stateLocked() domain.SchedulerState {
	switch {
	case s.buildGen != "":
		return domain.StateBuilding
	case s.armed:
		return domain.StatePending
	default:
		return domain.StateIdle
	}
}

// fire 在去抖窗口到期时执行一次重建。
// 加载在持锁状态下进行：宿主的结局回调同样要取这把锁，
// 因此 buildGen 在回调观察到它之前一定已经就位。
// 每次重建装配到一份全新的文档：已加载的一代持有自己那份，
// 后续重建不会原地改写它。
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	// 窗口内的编辑最终回到了已构建的内容，无需重建
	if s.builtOK && s.latest.Equal(s.built) {
		s.mu.Unlock()
		return
	}
	doc := assembler.Assemble(s.latest)
	s.doc = doc
	s.hasDoc = true
	s.built = s.latest
	s.builtOK = true
	s.buildStart = time.Now()

	gen, err := s.host.Load(&doc)
	s.buildGen = gen
	if err != nil {
		s.logger.WithError(err).WithField("generation", gen).Warn("Sandbox launch failed")
		s.failLocked(gen)
		s.mu.Unlock()
		return
	}

	s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"engine":     s.host.Engine(),
	}).Info("Preview rebuild started")
	s.mu.Unlock()
}

// onReady 处理一次成功完成的初始执行。
func (s *Scheduler) onReady(gen string) {
	s.mu.Lock()
	if gen != s.buildGen {
		s.mu.Unlock()
		return
	}
	latency := time.Since(s.buildStart).Milliseconds()
	metric := domain.BuildMetric{
		Generation:  gen,
		LatencyMs:   latency,
		TimestampMs: time.Now().UnixMilli(),
	}
	s.history = append(s.history, metric)
	if len(s.history) > s.cfg.MetricHistory {
		s.history = s.history[len(s.history)-s.cfg.MetricHistory:]
	}
	s.buildGen = ""
	s.mu.Unlock()

	s.metrics.RecordBuild("completed", float64(latency))
	s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"latency_ms": latency,
	}).Info("Preview rebuild completed")

	if s.bus != nil {
		if err := s.bus.PublishBuildCompleted(context.Background(), metric); err != nil {
			s.logger.WithError(err).Warn("Failed to publish build event")
		}
	}
}

// onFault 处理启动之后阶段的初始化故障。
func (s *Scheduler) onFault(gen string, err error) {
	s.mu.Lock()
	if gen != s.buildGen {
		s.mu.Unlock()
		return
	}
	s.logger.WithError(err).WithField("generation", gen).Warn("Sandbox fault during initialization")
	s.failLocked(gen)
	s.mu.Unlock()
}

// failLocked 收尾一次失败的构建：记录指标、向控制台写入
// 宿主侧错误条目、回到空闲（不自动重试，等待下一次编辑）。
func (s *Scheduler) failLocked(gen string) {
	latency := time.Since(s.buildStart).Milliseconds()
	s.buildGen = ""
	// 失败的构建不算数：同样内容的下一次编辑仍要重建
	s.builtOK = false
	s.metrics.RecordBuild("failed", float64(latency))
	s.relay.System(domain.SeverityError, faultMessage)

	if s.bus != nil {
		go func() {
			if err := s.bus.PublishBuildFailed(context.Background(), gen, faultMessage); err != nil {
				s.logger.WithError(err).Warn("Failed to publish build event")
			}
		}()
	}
}
