// Package config 提供预览服务的配置管理功能。
// 该包从 YAML 配置文件加载配置，为缺省项填充默认值，
// 并支持通过环境变量覆盖部署相关的配置项。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/telemetry"
)

// Config 是应用程序的主配置结构体，包含所有子系统的配置。
type Config struct {
	// Server 服务器配置，包括 HTTP 端口与关闭超时
	Server ServerConfig `yaml:"server"`
	// Preview 预览管线配置，包括执行引擎与去抖窗口
	Preview PreviewConfig `yaml:"preview"`
	// Watch 本地文件监视配置
	Watch WatchConfig `yaml:"watch"`
	// Events 事件配置，包括 NATS 消息队列连接信息
	Events EventsConfig `yaml:"events"`
	// Logging 日志配置，包括日志级别和格式
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig 服务器配置结构体。
type ServerConfig struct {
	// HTTPPort HTTP API 服务端口
	// 默认值：8080
	HTTPPort int `yaml:"http_port"`
	// MetricsPort 指标服务端口，用于 Prometheus 指标暴露
	// 默认值：9090
	MetricsPort int `yaml:"metrics_port"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：30 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PreviewConfig 预览管线配置结构体。
type PreviewConfig struct {
	// Engine 执行引擎，可选值为 "goja"（JavaScript）或 "wasm"（WASI 模块）
	// 默认值：goja
	Engine string `yaml:"engine"`
	// DebounceWindow 编辑到重建的去抖窗口
	// 默认值：500ms
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// MaxConsoleEntries 控制台缓冲保留的最大条目数
	// 默认值：50
	MaxConsoleEntries int `yaml:"max_console_entries"`
	// MetricHistory 保留的构建延迟指标条数
	// 默认值：100
	MetricHistory int `yaml:"metric_history"`
}

// WatchConfig 本地文件监视配置结构体。
// 启用后服务监视目录中的三个源文件，写入即触发编辑。
type WatchConfig struct {
	// Enabled 是否启用文件监视
	Enabled bool `yaml:"enabled"`
	// Dir 被监视的目录
	Dir string `yaml:"dir"`
	// MarkupFile 标记片段文件名
	// 默认值：index.html
	MarkupFile string `yaml:"markup_file"`
	// StylesFile 样式片段文件名
	// 默认值：style.css
	StylesFile string `yaml:"styles_file"`
	// ScriptFile 脚本片段文件名
	// 默认值：script.js
	ScriptFile string `yaml:"script_file"`
}

// EventsConfig 事件配置结构体。
type EventsConfig struct {
	// Enabled 是否启用事件发布
	Enabled bool `yaml:"enabled"`
	// NatsURL NATS 消息服务器 URL，如 "nats://localhost:4222"
	// 可通过环境变量 LUMEN_NATS_URL 覆盖
	NatsURL string `yaml:"nats_url"`
}

// LoggingConfig 日志配置结构体。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	// 默认值：lumen
	Namespace string `yaml:"namespace"`
}

// Load 从指定路径加载配置文件。
// 文件不存在时返回全默认配置，便于零配置启动；
// 读取成功则解析 YAML、应用默认值并处理环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验互相关联的配置项。
func (c *Config) Validate() error {
	switch c.Preview.Engine {
	case "goja", "wasm":
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidEngine, c.Preview.Engine)
	}
	if c.Events.Enabled && c.Events.NatsURL == "" {
		return fmt.Errorf("events enabled but nats_url is empty")
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return fmt.Errorf("watch enabled but dir is empty")
	}
	return nil
}

// applyEnvOverrides 应用环境变量覆盖，用于容器化部署时
// 注入连接地址而无需改写配置文件。
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("LUMEN_NATS_URL")); v != "" {
		c.Events.NatsURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
}

// applyDefaults 为未设置的配置项填充默认值。
func (c *Config) applyDefaults() {
	// HTTP 端口默认为 8080
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	// 指标端口默认为 9090
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	// 优雅关闭超时默认为 30 秒
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	// 执行引擎默认为 goja
	if c.Preview.Engine == "" {
		c.Preview.Engine = "goja"
	}
	// 去抖窗口默认为 500ms
	if c.Preview.DebounceWindow == 0 {
		c.Preview.DebounceWindow = 500 * time.Millisecond
	}
	// 控制台缓冲默认保留 50 条
	if c.Preview.MaxConsoleEntries == 0 {
		c.Preview.MaxConsoleEntries = 50
	}
	// 构建指标默认保留 100 条
	if c.Preview.MetricHistory == 0 {
		c.Preview.MetricHistory = 100
	}
	// 监视文件名默认值
	if c.Watch.MarkupFile == "" {
		c.Watch.MarkupFile = "index.html"
	}
	if c.Watch.StylesFile == "" {
		c.Watch.StylesFile = "style.css"
	}
	if c.Watch.ScriptFile == "" {
		c.Watch.ScriptFile = "script.js"
	}
	// 日志级别默认为 info，格式默认为 json
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	// 指标命名空间默认为 lumen
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "lumen"
	}
	// 遥测服务名称默认为 lumen-preview
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "lumen-preview"
	}
	// OTLP 端点默认为 tempo:4317
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "tempo:4317"
	}
	// 采样率默认为 10%
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	// 环境标识默认为 development
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
