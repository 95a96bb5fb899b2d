// Package api 提供预览服务的 HTTP API 处理程序。
// 该包实现 RESTful 接口，用于推送源文本、获取装配文档、
// 查询和订阅控制台条目以及查看构建指标。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/relay"
	"github.com/lumenlab/lumen/internal/sandbox"
	"github.com/lumenlab/lumen/internal/scheduler"
	"github.com/lumenlab/lumen/internal/sink"
	"github.com/sirupsen/logrus"
)

// GenerationHeader 在预览响应中携带文档所属的代标识。
const GenerationHeader = "X-Lumen-Generation"

// Handler 是 API 请求处理器的核心结构体。
// 它封装了调度器、沙箱宿主、中继与控制台缓冲的依赖。
type Handler struct {
	sched   *scheduler.Scheduler
	host    *sandbox.Host
	relay   *relay.Relay
	sink    *sink.Sink
	logger  *logrus.Logger
	started time.Time
}

// NewHandler 创建处理器实例。
func NewHandler(sched *scheduler.Scheduler, host *sandbox.Host, r *relay.Relay, s *sink.Sink, logger *logrus.Logger) *Handler {
	return &Handler{
		sched:   sched,
		host:    host,
		relay:   r,
		sink:    s,
		logger:  logger,
		started: time.Now(),
	}
}

// Health 基本健康检查。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready Kubernetes 就绪探针。
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live Kubernetes 存活探针。
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// GetSource 返回最近接受的源文本集合。
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	set, ok := h.sched.Source()
	if !ok {
		writeError(w, r, http.StatusNotFound, "no source has been pushed yet")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// maxPushBody 是 PushSource 请求体的上限：三个片段各 1 MiB，
// 加上 JSON 转义与包装的余量。超限请求在传输层截断，不会整体缓冲。
const maxPushBody = 4 << 20

// PushSource 接受一组新的源文本并触发去抖重建。
func (h *Handler) PushSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPushBody)

	var set domain.SourceSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body exceeds limit")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.sched.Edit(set); err != nil {
		if errors.Is(err, domain.ErrFragmentTooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"state": string(h.sched.State()),
	})
}

// GetPreview 返回最近装配的一代文档（HTML）。
// 响应头带有该文档所属的代标识，消费者可据此判断是否已看到最新一代。
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	doc, err := h.sched.Document()
	if err != nil {
		writeError(w, r, http.StatusNotFound, "no preview has been built yet")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(GenerationHeader, h.host.Live())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc.Text))
}

// ListConsole 返回控制台缓冲当前保留的条目，最旧的在前。
func (h *Handler) ListConsole(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.sink.All(),
		"evicted": h.sink.Evicted(),
	})
}

// ClearConsole 清空控制台缓冲。
func (h *Handler) ClearConsole(w http.ResponseWriter, r *http.Request) {
	h.sink.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ListBuilds 返回最近构建的延迟指标，最新的在末尾。
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"builds": h.sched.Builds(),
	})
}

// StatusResponse 是 /status 端点的响应结构体。
type StatusResponse struct {
	State          domain.SchedulerState `json:"state"`
	LiveGeneration string                `json:"live_generation,omitempty"`
	Engine         string                `json:"engine"`
	ConsoleEntries int                   `json:"console_entries"`
	ConsoleEvicted uint64                `json:"console_evicted"`
	DroppedStale   uint64                `json:"dropped_stale"`
	DroppedInvalid uint64                `json:"dropped_invalid"`
	UptimeSeconds  int64                 `json:"uptime_seconds"`
}

// GetStatus 返回管线的聚合状态。
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:          h.sched.State(),
		LiveGeneration: h.host.Live(),
		Engine:         h.host.Engine(),
		ConsoleEntries: h.sink.Len(),
		ConsoleEvicted: h.sink.Evicted(),
		DroppedStale:   h.relay.Stale(),
		DroppedInvalid: h.relay.Malformed(),
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
	})
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应。
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse 是统一的错误响应结构体。
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应，
// 并附带请求上下文中的 request_id 便于日志关联。
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
