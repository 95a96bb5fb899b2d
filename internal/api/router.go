// Package api 提供预览服务的 HTTP API 处理程序。
// 本文件负责配置路由器和中间件，把 HTTP 请求映射到处理器方法。
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lumenlab/lumen/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig 路由器配置选项。
type RouterConfig struct {
	// Handler API 处理器
	Handler *Handler
	// StreamHandler 控制台实时流处理器
	StreamHandler *StreamHandler
	// Logger 日志记录器
	Logger *logrus.Logger
}

// NewRouter 创建并配置 HTTP 路由器。
//
// 路由结构：
//
//	/health               - 基本健康检查
//	/health/ready         - Kubernetes 就绪探针
//	/health/live          - Kubernetes 存活探针
//	/metrics              - Prometheus 指标端点
//	/api/v1/source        - 源文本推送与查询
//	/api/v1/preview       - 装配文档获取
//	/api/v1/console       - 控制台条目查询/清空
//	/api/v1/console/stream - 控制台实时 WebSocket 流
//	/api/v1/builds        - 构建延迟指标
//	/api/v1/status        - 管线聚合状态
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	r := chi.NewRouter()

	// 中间件按添加顺序执行，形成洋葱模型
	r.Use(telemetry.HTTPMiddleware("lumen-preview"))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5, "application/json", "text/html", "text/plain"))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	// 健康检查端点，供负载均衡器和 Kubernetes 探针使用
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	r.Get("/health/live", h.Live)

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/source", func(r chi.Router) {
			r.Get("/", h.GetSource)
			r.Post("/", h.PushSource)
		})

		r.Get("/preview", h.GetPreview)

		r.Route("/console", func(r chi.Router) {
			r.Get("/", h.ListConsole)
			r.Delete("/", h.ClearConsole)
			if cfg.StreamHandler != nil {
				r.Get("/stream", cfg.StreamHandler.Stream)
			}
		})

		r.Get("/builds", h.ListBuilds)
		r.Get("/status", h.GetStatus)
	})

	return r
}

// corsMiddleware 处理跨域请求。编辑器前端通常跑在独立的开发端口上。
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
