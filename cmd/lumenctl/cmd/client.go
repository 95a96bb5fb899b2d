// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 API 客户端，用于与预览服务的后端通信。
// 客户端使用 HTTP/JSON 协议，支持错误处理和超时控制。
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client 是预览服务的 API 客户端。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端实例。
// 从 viper 配置读取 api_url，未配置时使用 http://localhost:8080。
func NewClient() *Client {
	baseURL := viper.GetString("api_url")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ========== 传输模型定义 ==========

// SourceSet 是推送给服务的三段源文本。
type SourceSet struct {
	Markup string `json:"markup"`
	Styles string `json:"styles"`
	Script string `json:"script"`
}

// ConsoleEntry 是服务返回的一条控制台条目。
type ConsoleEntry struct {
	ID          string `json:"id"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// BuildMetric 是一次完成构建的延迟指标。
type BuildMetric struct {
	Generation  string `json:"generation"`
	LatencyMs   int64  `json:"latency_ms"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Status 是管线的聚合状态。
type Status struct {
	State          string `json:"state"`
	LiveGeneration string `json:"live_generation"`
	Engine         string `json:"engine"`
	ConsoleEntries int    `json:"console_entries"`
	ConsoleEvicted uint64 `json:"console_evicted"`
	DroppedStale   uint64 `json:"dropped_stale"`
	DroppedInvalid uint64 `json:"dropped_invalid"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// errorResponse 是服务端统一的错误响应。
type errorResponse struct {
	Error string `json:"error"`
}

// do 发送请求并把响应体解码到 out（out 为 nil 时丢弃）。
func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PushSource 推送一组源文本。
func (c *Client) PushSource(set SourceSet) error {
	return c.do(http.MethodPost, "/api/v1/source", set, nil)
}

// GetSource 获取当前的源文本集合。
func (c *Client) GetSource() (*SourceSet, error) {
	var set SourceSet
	if err := c.do(http.MethodGet, "/api/v1/source", nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// GetPreview 获取最近装配的文档和其代标识。
func (c *Client) GetPreview() (string, string, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/v1/preview", nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return "", "", fmt.Errorf("%s", errResp.Error)
		}
		return "", "", fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	return string(data), resp.Header.Get("X-Lumen-Generation"), nil
}

// ListConsole 获取当前保留的控制台条目。
func (c *Client) ListConsole() ([]ConsoleEntry, uint64, error) {
	var listing struct {
		Entries []ConsoleEntry `json:"entries"`
		Evicted uint64         `json:"evicted"`
	}
	if err := c.do(http.MethodGet, "/api/v1/console", nil, &listing); err != nil {
		return nil, 0, err
	}
	return listing.Entries, listing.Evicted, nil
}

// ClearConsole 清空控制台缓冲。
func (c *Client) ClearConsole() error {
	return c.do(http.MethodDelete, "/api/v1/console", nil, nil)
}

// ListBuilds 获取最近构建的延迟指标。
func (c *Client) ListBuilds() ([]BuildMetric, error) {
	var listing struct {
		Builds []BuildMetric `json:"builds"`
	}
	if err := c.do(http.MethodGet, "/api/v1/builds", nil, &listing); err != nil {
		return nil, err
	}
	return listing.Builds, nil
}

// GetStatus 获取管线的聚合状态。
func (c *Client) GetStatus() (*Status, error) {
	var status Status
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StreamURL 返回控制台实时流的 WebSocket 地址。
func (c *Client) StreamURL() string {
	ws := strings.Replace(c.baseURL, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)
	return ws + "/api/v1/console/stream"
}
