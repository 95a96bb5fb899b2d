package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumenlab/lumen/internal/domain"
)

// TestLoad_MissingFileUsesDefaults 测试配置文件缺失时回落到全默认配置。
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Preview.Engine != "goja" {
		t.Errorf("Engine = %q, want goja", cfg.Preview.Engine)
	}
	if cfg.Preview.DebounceWindow != 500*time.Millisecond {
		t.Errorf("DebounceWindow = %v, want 500ms", cfg.Preview.DebounceWindow)
	}
	if cfg.Preview.MaxConsoleEntries != 50 {
		t.Errorf("MaxConsoleEntries = %d, want 50", cfg.Preview.MaxConsoleEntries)
	}
	if cfg.Watch.ScriptFile != "script.js" {
		t.Errorf("ScriptFile = %q, want script.js", cfg.Watch.ScriptFile)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Logging.Format)
	}
}

// TestLoad_FileOverridesDefaults 测试文件中的显式值覆盖默认值。
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http_port: 9000
preview:
  engine: wasm
  debounce_window: 100ms
  max_console_entries: 10
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.Server.HTTPPort)
	}
	if cfg.Preview.Engine != "wasm" {
		t.Errorf("Engine = %q, want wasm", cfg.Preview.Engine)
	}
	if cfg.Preview.DebounceWindow != 100*time.Millisecond {
		t.Errorf("DebounceWindow = %v, want 100ms", cfg.Preview.DebounceWindow)
	}
	if cfg.Preview.MaxConsoleEntries != 10 {
		t.Errorf("MaxConsoleEntries = %d, want 10", cfg.Preview.MaxConsoleEntries)
	}
	// 未出现在文件中的项仍取默认值
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("MetricsPort = %d, want default 9090", cfg.Server.MetricsPort)
	}
}

// TestLoad_InvalidEngine 测试未知引擎被拒绝。
func TestLoad_InvalidEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("preview:\n  engine: v8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, domain.ErrInvalidEngine) {
		t.Errorf("Load() error = %v, want ErrInvalidEngine", err)
	}
}

// TestLoad_EnvOverrides 测试环境变量覆盖连接地址。
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LUMEN_NATS_URL", "nats://broker:4222")
	t.Setenv("LUMEN_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Events.NatsURL != "nats://broker:4222" {
		t.Errorf("NatsURL = %q, want env override", cfg.Events.NatsURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

// TestValidate_EventsRequireURL 测试启用事件但缺少地址时报错。
func TestValidate_EventsRequireURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("events:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted events.enabled without nats_url")
	}
}
