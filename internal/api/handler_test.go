// Package api 提供预览服务的 HTTP API 处理程序。
// 本文件使用假引擎驱动完整管线，对处理器进行端到端测试。
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/relay"
	"github.com/lumenlab/lumen/internal/sandbox"
	"github.com/lumenlab/lumen/internal/scheduler"
	"github.com/lumenlab/lumen/internal/sink"
	"github.com/sirupsen/logrus"
)

// instantInstance 在启动后立即成功完成。
type instantInstance struct {
	done chan struct{}
}

func (i *instantInstance) Done() <-chan struct{} { return i.done }
func (i *instantInstance) Err() error            { return nil }
func (i *instantInstance) Close() error          { return nil }

// instantEngine 记录每次启动绑定的发射通道。
type instantEngine struct {
	mu    sync.Mutex
	emits []sandbox.EmitFunc
}

func (e *instantEngine) Name() string { return "instant" }

func (e *instantEngine) Launch(ctx context.Context, doc *domain.RenderedDocument, emit sandbox.EmitFunc) (sandbox.Instance, error) {
	e.mu.Lock()
	e.emits = append(e.emits, emit)
	e.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return &instantInstance{done: done}, nil
}

func (e *instantEngine) lastEmit() sandbox.EmitFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emits[len(e.emits)-1]
}

// testPipeline 组装一条带假引擎的完整服务管线并返回其路由器。
type testPipeline struct {
	engine *instantEngine
	sched  *scheduler.Scheduler
	sink   *sink.Sink
	router http.Handler
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	engine := &instantEngine{}
	s := sink.New(50)

	var host *sandbox.Host
	r := relay.New(liveFunc(func() string { return host.Live() }), s, nil, logger)
	host = sandbox.NewHost(engine, r.Accept, nil, logger)

	sched := scheduler.New(scheduler.Config{Debounce: 10 * time.Millisecond}, host, r, nil, nil, logger)
	sched.Start()

	broadcaster := NewEntryBroadcaster()
	r.OnEntry(broadcaster.Broadcast)

	router := NewRouter(&RouterConfig{
		Handler:       NewHandler(sched, host, r, s, logger),
		StreamHandler: NewStreamHandler(broadcaster, nil, logger),
		Logger:        logger,
	})

	t.Cleanup(func() {
		sched.Stop()
		host.Close()
	})
	return &testPipeline{engine: engine, sched: sched, sink: s, router: router}
}

type liveFunc func() string

func (f liveFunc) Live() string { return f() }

func (p *testPipeline) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, req)
	return rec
}

func (p *testPipeline) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.sched.State() == domain.StateIdle && len(p.sched.Builds()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("pipeline never settled")
}

// TestPushSourceAndPreview 测试推送源文本后能取到装配文档。
func TestPushSourceAndPreview(t *testing.T) {
	p := newTestPipeline(t)

	rec := p.do(t, http.MethodPost, "/api/v1/source", `{"markup":"<p>hello</p>","styles":"p { color: red; }","script":"console.log(1);"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /source status = %d, want 202", rec.Code)
	}

	p.waitIdle(t)

	rec = p.do(t, http.MethodGet, "/api/v1/preview", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /preview status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if rec.Header().Get(GenerationHeader) == "" {
		t.Error("preview response missing generation header")
	}
	if !strings.Contains(rec.Body.String(), "<p>hello</p>") {
		t.Error("preview does not embed the markup fragment")
	}

	rec = p.do(t, http.MethodGet, "/api/v1/source", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /source status = %d, want 200", rec.Code)
	}
	var set domain.SourceSet
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatalf("decode source: %v", err)
	}
	if set.Markup != "<p>hello</p>" {
		t.Errorf("Markup = %q, want round-trip", set.Markup)
	}
}

// TestPreviewBeforeFirstBuild 测试首次构建前预览返回 404。
func TestPreviewBeforeFirstBuild(t *testing.T) {
	p := newTestPipeline(t)

	if rec := p.do(t, http.MethodGet, "/api/v1/preview", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /preview status = %d, want 404", rec.Code)
	}
	if rec := p.do(t, http.MethodGet, "/api/v1/source", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /source status = %d, want 404", rec.Code)
	}
}

// TestPushSourceRejectsBadInput 测试非法请求体与超限片段的拒绝。
func TestPushSourceRejectsBadInput(t *testing.T) {
	p := newTestPipeline(t)

	if rec := p.do(t, http.MethodPost, "/api/v1/source", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}

	big, _ := json.Marshal(domain.SourceSet{Script: strings.Repeat("a", domain.MaxFragmentSize+1)})
	if rec := p.do(t, http.MethodPost, "/api/v1/source", string(big)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want 413", rec.Code)
	}

	// 整体超限的请求体在传输层被截断，同样 413
	huge := `{"script":"` + strings.Repeat("a", maxPushBody+1) + `"}`
	if rec := p.do(t, http.MethodPost, "/api/v1/source", huge); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("huge body status = %d, want 413", rec.Code)
	}
}

// TestConsoleListAndClear 测试控制台条目查询与清空。
func TestConsoleListAndClear(t *testing.T) {
	p := newTestPipeline(t)

	p.do(t, http.MethodPost, "/api/v1/source", `{"script":"console.log(1);"}`)
	p.waitIdle(t)

	// 来宾输出经中继进入缓冲
	p.engine.lastEmit()(domain.Envelope{Kind: domain.KindConsole, Method: "warn", Message: "careful"})

	rec := p.do(t, http.MethodGet, "/api/v1/console", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /console status = %d, want 200", rec.Code)
	}
	var listing struct {
		Entries []domain.ConsoleEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode console listing: %v", err)
	}
	if len(listing.Entries) != 1 || listing.Entries[0].Severity != domain.SeverityWarn {
		t.Fatalf("entries = %+v, want one warn entry", listing.Entries)
	}

	if rec := p.do(t, http.MethodDelete, "/api/v1/console", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /console status = %d, want 204", rec.Code)
	}
	if p.sink.Len() != 0 {
		t.Error("sink not cleared")
	}
}

// TestStatusAndBuilds 测试聚合状态与构建指标端点。
func TestStatusAndBuilds(t *testing.T) {
	p := newTestPipeline(t)

	p.do(t, http.MethodPost, "/api/v1/source", `{"script":""}`)
	p.waitIdle(t)

	rec := p.do(t, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}
	var status StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.State != domain.StateIdle {
		t.Errorf("State = %v, want idle", status.State)
	}
	if status.LiveGeneration == "" {
		t.Error("LiveGeneration empty after a build")
	}
	if status.Engine != "instant" {
		t.Errorf("Engine = %q, want instant", status.Engine)
	}

	rec = p.do(t, http.MethodGet, "/api/v1/builds", "")
	var builds struct {
		Builds []domain.BuildMetric `json:"builds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &builds); err != nil {
		t.Fatalf("decode builds: %v", err)
	}
	if len(builds.Builds) != 1 {
		t.Errorf("builds len = %d, want 1", len(builds.Builds))
	}
}

// TestHealthEndpoints 测试健康检查端点。
func TestHealthEndpoints(t *testing.T) {
	p := newTestPipeline(t)

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		if rec := p.do(t, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
