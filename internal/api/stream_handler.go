// Package api 提供预览服务的 HTTP API 处理程序。
// 本文件实现控制台条目的实时 WebSocket 流。
package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/metrics"
	"github.com/sirupsen/logrus"
)

// EntryBroadcaster 把中继转发的控制台条目扇出给所有 WebSocket 订阅者。
type EntryBroadcaster struct {
	subscribers   map[chan domain.ConsoleEntry]struct{}
	subscribersMu sync.RWMutex
}

// NewEntryBroadcaster 创建条目广播器。
func NewEntryBroadcaster() *EntryBroadcaster {
	return &EntryBroadcaster{
		subscribers: make(map[chan domain.ConsoleEntry]struct{}),
	}
}

// Subscribe 订阅条目流。
func (b *EntryBroadcaster) Subscribe(ch chan domain.ConsoleEntry) {
	b.subscribersMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.subscribersMu.Unlock()
}

// Unsubscribe 取消订阅。
func (b *EntryBroadcaster) Unsubscribe(ch chan domain.ConsoleEntry) {
	b.subscribersMu.Lock()
	delete(b.subscribers, ch)
	b.subscribersMu.Unlock()
}

// Broadcast 把一条条目推送给所有订阅者。
// 订阅者通道满时丢弃该订阅者的这条条目，慢消费者不拖慢管线。
func (b *EntryBroadcaster) Broadcast(entry domain.ConsoleEntry) {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// StreamHandler 处理控制台条目的 WebSocket 实时订阅。
type StreamHandler struct {
	broadcaster *EntryBroadcaster
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	upgrader    websocket.Upgrader
}

// NewStreamHandler 创建流处理器。
func NewStreamHandler(b *EntryBroadcaster, m *metrics.Metrics, logger *logrus.Logger) *StreamHandler {
	return &StreamHandler{
		broadcaster: b,
		metrics:     m,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// Stream 把控制台条目实时推送给 WebSocket 客户端。
// 可选 query 参数 severity 按级别过滤（info/warn/error）。
func (s *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	filterSeverity := r.URL.Query().Get("severity")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	entryChan := make(chan domain.ConsoleEntry, 100)
	s.broadcaster.Subscribe(entryChan)
	defer s.broadcaster.Unsubscribe(entryChan)

	s.metrics.StreamSubscribed()
	defer s.metrics.StreamUnsubscribed()

	// 监听客户端关闭
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case entry := <-entryChan:
			if filterSeverity != "" && string(entry.Severity) != filterSeverity {
				continue
			}
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
	}
}
