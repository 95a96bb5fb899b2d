// Package sink 实现有界、有序的控制台条目缓冲。
// Sink 是唯一被多个逻辑生产者（中继转发的来宾事件和调度器产生的
// 宿主故障条目）共同写入的结构，使用互斥锁保证追加顺序。
package sink

import (
	"sync"

	"github.com/lumenlab/lumen/internal/domain"
)

// DefaultMaxEntries 是 Sink 保留条目数的默认上限。
const DefaultMaxEntries = 50

// Sink 是固定容量的 FIFO 环形缓冲。
// 追加导致超限时最老的条目先被淘汰；条目追加后不再被修改。
type Sink struct {
	mu      sync.Mutex
	buf     []domain.ConsoleEntry
	head    int
	count   int
	evicted uint64
}

// New 创建容量为 max 的 Sink；max 不为正时使用默认上限。
func New(max int) *Sink {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Sink{buf: make([]domain.ConsoleEntry, max)}
}

// Append 追加一条条目，必要时淘汰最老的条目。O(1)。
func (s *Sink) Append(entry domain.ConsoleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == len(s.buf) {
		// 缓冲已满，覆盖最老位置
		s.buf[s.head] = entry
		s.head = (s.head + 1) % len(s.buf)
		s.evicted++
		return
	}
	s.buf[(s.head+s.count)%len(s.buf)] = entry
	s.count++
}

// All 返回当前条目的有序快照（从最老到最新）。
// 返回的切片是副本，调用方持有它不会观察到后续追加。
func (s *Sink) All() []domain.ConsoleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ConsoleEntry, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Clear 清空全部条目。
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.count = 0
}

// Len 返回当前条目数。
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap 返回条目数上限。
func (s *Sink) Cap() int {
	return len(s.buf)
}

// Evicted 返回累计淘汰的条目数，用于诊断。
func (s *Sink) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}
