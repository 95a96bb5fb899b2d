// Package relay 实现来宾事件进入宿主的唯一通道。
// 中继校验事件的代标识、把两种事件形态规范化为控制台条目、
// 按来宾发射顺序恰好转发一次，并丢弃和计数畸形载荷。
// 所有来宾侧故障都终止于中继边界，从不进入宿主控制流。
package relay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/metrics"
	"github.com/lumenlab/lumen/internal/sink"
	"github.com/sirupsen/logrus"
)

// LiveSource 提供当前存活的一代标识。由沙箱宿主实现。
type LiveSource interface {
	Live() string
}

// EntryFunc 是条目追加后的转发回调（WebSocket 广播、事件总线等）。
type EntryFunc func(domain.ConsoleEntry)

// Relay 把沙箱发射的事件规范化并追加到 Sink。
type Relay struct {
	live    LiveSource
	sink    *sink.Sink
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu       sync.RWMutex
	forwards []EntryFunc

	stale     atomic.Uint64
	malformed atomic.Uint64
}

// New 创建中继。metrics 可以为 nil。
func New(live LiveSource, s *sink.Sink, m *metrics.Metrics, logger *logrus.Logger) *Relay {
	return &Relay{
		live:    live,
		sink:    s,
		metrics: m,
		logger:  logger,
	}
}

// OnEntry 注册条目转发回调。回调在追加 Sink 之后同步调用。
func (r *Relay) OnEntry(fn EntryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwards = append(r.forwards, fn)
}

// Accept 处理一条入站事件。
// 非存活代的事件静默丢弃；畸形载荷丢弃并计数，从不升级为宿主可见错误；
// 合法事件规范化为一条 ConsoleEntry，恰好追加一次。
func (r *Relay) Accept(env domain.Envelope) {
	if env.Generation == "" || env.Generation != r.live.Live() {
		r.stale.Add(1)
		r.metrics.RecordRelayDrop(metrics.ReasonStale)
		r.logger.WithFields(logrus.Fields{
			"generation": env.Generation,
			"kind":       env.Kind,
		}).Debug("Dropped stale-generation event")
		return
	}

	entry, err := r.normalize(env)
	if err != nil {
		r.malformed.Add(1)
		r.metrics.RecordRelayDrop(metrics.ReasonMalformed)
		r.logger.WithError(err).WithField("kind", env.Kind).Debug("Dropped malformed guest event")
		return
	}

	r.append(entry)
}

// System 追加一条宿主侧产生的条目（如沙箱初始化故障）。
// 宿主条目不携带代标识，不经过存活代校验。
func (r *Relay) System(severity domain.Severity, message string) {
	r.append(domain.ConsoleEntry{
		ID:          uuid.NewString(),
		Severity:    severity,
		Message:     message,
		TimestampMs: time.Now().UnixMilli(),
	})
}

// Stale 返回累计丢弃的过期代事件数。
func (r *Relay) Stale() uint64 { return r.stale.Load() }

// Malformed 返回累计丢弃的畸形事件数。
func (r *Relay) Malformed() uint64 { return r.malformed.Load() }

// normalize 把入站事件规范化为控制台条目。
func (r *Relay) normalize(env domain.Envelope) (domain.ConsoleEntry, error) {
	ts := env.TimestampMs
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	switch env.Kind {
	case domain.KindConsole:
		// console 事件: method 直接映射为 severity，未知方法默认 info
		return domain.ConsoleEntry{
			ID:          uuid.NewString(),
			Severity:    domain.SeverityFromMethod(env.Method),
			Message:     env.Message,
			TimestampMs: ts,
		}, nil

	case domain.KindError:
		if env.Message == "" {
			return domain.ConsoleEntry{}, fmt.Errorf("%w: error event without message", domain.ErrMalformedEvent)
		}
		file := env.File
		if file == "" {
			file = "script.js"
		}
		return domain.ConsoleEntry{
			ID:          uuid.NewString(),
			Severity:    domain.SeverityError,
			Message:     fmt.Sprintf("%s at %s:%d", env.Message, file, env.Line),
			TimestampMs: ts,
		}, nil

	default:
		return domain.ConsoleEntry{}, fmt.Errorf("%w: unknown kind %q", domain.ErrMalformedEvent, env.Kind)
	}
}

// append 追加条目并触发转发回调。
func (r *Relay) append(entry domain.ConsoleEntry) {
	r.sink.Append(entry)
	r.metrics.RecordConsoleEntry(string(entry.Severity))

	r.mu.RLock()
	forwards := r.forwards
	r.mu.RUnlock()
	for _, fn := range forwards {
		fn(entry)
	}
}
