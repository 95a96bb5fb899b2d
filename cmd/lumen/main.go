// Package main 是实时预览服务的入口点。
// 服务接收源文本编辑，在隔离沙箱中执行装配后的文档，
// 并通过 HTTP API 与 WebSocket 暴露预览、控制台和构建指标。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenlab/lumen/internal/api"
	"github.com/lumenlab/lumen/internal/config"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/events"
	"github.com/lumenlab/lumen/internal/metrics"
	"github.com/lumenlab/lumen/internal/relay"
	"github.com/lumenlab/lumen/internal/sandbox"
	"github.com/lumenlab/lumen/internal/scheduler"
	"github.com/lumenlab/lumen/internal/sink"
	"github.com/lumenlab/lumen/internal/telemetry"
	"github.com/lumenlab/lumen/internal/watch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// liveFunc 以函数适配 relay.LiveSource，打破宿主与中继的构造环。
type liveFunc func() string

// Live 返回当前存活的代标识。
func (f liveFunc) Live() string { return f() }

func main() {
	configPath := flag.String("config", "/etc/lumen/config.yaml", "Path to config file")
	flag.Parse()

	// JSON 格式日志，便于收集和分析
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.WithField("engine", cfg.Preview.Engine).Info("Starting Lumen preview service")

	// 初始化遥测 (OpenTelemetry)
	if cfg.Telemetry.Enabled {
		tel, err := telemetry.New(context.Background(), cfg.Telemetry)
		if err != nil {
			// 遥测初始化失败不影响主服务运行
			logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		} else {
			defer tel.Shutdown(context.Background())
			logger.AddHook(telemetry.NewLogrusHook())
			logger.WithFields(logrus.Fields{
				"endpoint":    cfg.Telemetry.Endpoint,
				"sample_rate": cfg.Telemetry.SampleRate,
			}).Info("Telemetry initialized")
		}
	}

	// 初始化 Prometheus 指标收集器
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	// 初始化事件总线（可选）
	var bus *events.EventBus
	if cfg.Events.Enabled {
		bus, err = events.NewEventBus(cfg.Events.NatsURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, continuing without events")
		} else {
			defer bus.Close()
			logger.WithField("url", cfg.Events.NatsURL).Info("Event bus connected")
		}
	}

	// 选择执行引擎
	var engine sandbox.Engine
	switch cfg.Preview.Engine {
	case "wasm":
		engine = sandbox.NewWasmEngine(logger)
	default:
		engine = sandbox.NewGojaEngine(logger)
	}

	// 组装预览管线：缓冲 → 中继 → 宿主 → 调度器
	consoleSink := sink.New(cfg.Preview.MaxConsoleEntries)

	var host *sandbox.Host
	r := relay.New(liveFunc(func() string { return host.Live() }), consoleSink, m, logger)
	host = sandbox.NewHost(engine, r.Accept, m, logger)
	defer host.Close()

	sched := scheduler.New(scheduler.Config{
		Debounce:      cfg.Preview.DebounceWindow,
		MetricHistory: cfg.Preview.MetricHistory,
	}, host, r, m, bus, logger)
	sched.Start()
	defer sched.Stop()

	// 控制台条目实时广播
	broadcaster := api.NewEntryBroadcaster()
	r.OnEntry(func(entry domain.ConsoleEntry) {
		broadcaster.Broadcast(entry)
		if bus != nil {
			if err := bus.PublishConsoleEntry(context.Background(), entry); err != nil {
				logger.WithError(err).Debug("Failed to publish console entry")
			}
		}
	})

	// 本地文件监视（可选）
	if cfg.Watch.Enabled {
		watcher, err := watch.New(watch.Config{
			Dir:        cfg.Watch.Dir,
			MarkupFile: cfg.Watch.MarkupFile,
			StylesFile: cfg.Watch.StylesFile,
			ScriptFile: cfg.Watch.ScriptFile,
		}, sched, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start file watcher")
		}
		defer watcher.Close()
		if err := watcher.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to push initial fragments")
		}
		logger.WithField("dir", cfg.Watch.Dir).Info("Watching fragment files")
	}

	handler := api.NewHandler(sched, host, r, consoleSink, logger)
	router := api.NewRouter(&api.RouterConfig{
		Handler:       handler,
		StreamHandler: api.NewStreamHandler(broadcaster, m, logger),
		Logger:        logger,
	})

	// 指标端口与主端口不同时单独启动指标服务器，避免公开暴露
	var metricsServer *http.Server
	if cfg.Metrics.Enabled && cfg.Server.MetricsPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.WithField("port", cfg.Server.MetricsPort).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("Metrics server failed")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.HTTPPort).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// 等待 SIGINT (Ctrl+C) 或 SIGTERM (容器停止)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown error")
		}
	}

	logger.Info("Server stopped")
}
