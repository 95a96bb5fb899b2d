// Package sandbox 实现来宾代码的隔离执行。
package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenlab/lumen/internal/domain"
	"github.com/lumenlab/lumen/internal/relay"
	"github.com/lumenlab/lumen/internal/sink"
	"github.com/sirupsen/logrus"
)

// fakeInstance 是可手动驱动的实例，用于在测试中控制执行结局。
type fakeInstance struct {
	done   chan struct{}
	err    error
	mu     sync.Mutex
	closed bool
}

func (i *fakeInstance) Done() <-chan struct{} { return i.done }
func (i *fakeInstance) Err() error            { return i.err }
func (i *fakeInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

func (i *fakeInstance) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// complete 结束实例的"首次同步执行"。
func (i *fakeInstance) complete(err error) {
	i.err = err
	close(i.done)
}

// fakeEngine 记录每次 Launch 绑定的发射通道，便于测试注入事件。
type fakeEngine struct {
	mu        sync.Mutex
	launches  int
	launchErr error
	instances []*fakeInstance
	emits     []EmitFunc
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Launch(ctx context.Context, doc *domain.RenderedDocument, emit EmitFunc) (Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launches++
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	inst := &fakeInstance{done: make(chan struct{})}
	e.instances = append(e.instances, inst)
	e.emits = append(e.emits, emit)
	return inst, nil
}

// testLogger 返回静默日志器。
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// waitFor 轮询等待条件成立。
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestHost_LoadMintsGeneration 测试每次 Load 铸造新的代标识并推进存活代。
func TestHost_LoadMintsGeneration(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHost(engine, func(domain.Envelope) {}, nil, testLogger())
	doc := &domain.RenderedDocument{}

	gen1, err := h.Load(doc)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gen1 == "" || h.Live() != gen1 {
		t.Fatalf("Live() = %q, want %q", h.Live(), gen1)
	}

	gen2, err := h.Load(doc)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if gen2 == gen1 {
		t.Error("generations must be unique per load")
	}
	if h.Live() != gen2 {
		t.Errorf("Live() = %q, want new generation %q", h.Live(), gen2)
	}
	// 前一代必须在新一代实例化之前被完整处置
	if !engine.instances[0].isClosed() {
		t.Error("previous instance was not disposed on reload")
	}
}

// TestHost_ReadyFiresForLiveGeneration 测试就绪回调只为存活代触发。
func TestHost_ReadyFiresForLiveGeneration(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHost(engine, func(domain.Envelope) {}, nil, testLogger())

	var mu sync.Mutex
	var readies []string
	h.OnReady(func(gen string) {
		mu.Lock()
		readies = append(readies, gen)
		mu.Unlock()
	})

	gen1, _ := h.Load(&domain.RenderedDocument{})
	engine.instances[0].complete(nil)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readies) == 1
	}, "ready callback did not fire")

	mu.Lock()
	if readies[0] != gen1 {
		t.Errorf("ready generation = %q, want %q", readies[0], gen1)
	}
	mu.Unlock()
}

// TestHost_SupersededOutcomeDropped 测试被取代的一代完成执行后
// 不触发任何回调（其结局按过期处理）。
func TestHost_SupersededOutcomeDropped(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHost(engine, func(domain.Envelope) {}, nil, testLogger())

	var mu sync.Mutex
	var readies []string
	h.OnReady(func(gen string) {
		mu.Lock()
		readies = append(readies, gen)
		mu.Unlock()
	})

	h.Load(&domain.RenderedDocument{})
	gen2, _ := h.Load(&domain.RenderedDocument{})

	// 旧代（已被处置）迟到地完成，不得触发回调
	engine.instances[0].complete(nil)
	engine.instances[1].complete(nil)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readies) >= 1
	}, "ready callback did not fire for live generation")

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(readies) != 1 || readies[0] != gen2 {
		t.Errorf("readies = %v, want exactly [%q]", readies, gen2)
	}
}

// TestHost_FaultCallback 测试启动后阶段的初始化故障通过 onFault 上报。
func TestHost_FaultCallback(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHost(engine, func(domain.Envelope) {}, nil, testLogger())

	faultCh := make(chan error, 1)
	h.OnFault(func(gen string, err error) { faultCh <- err })

	h.Load(&domain.RenderedDocument{})
	engine.instances[0].complete(domain.ErrSandboxFault)

	select {
	case err := <-faultCh:
		if !errors.Is(err, domain.ErrSandboxFault) {
			t.Errorf("fault error = %v, want ErrSandboxFault", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fault callback did not fire")
	}
}

// TestHost_LoadAfterClose 测试关闭后的宿主拒绝加载。
func TestHost_LoadAfterClose(t *testing.T) {
	h := NewHost(&fakeEngine{}, func(domain.Envelope) {}, nil, testLogger())
	h.Close()

	if _, err := h.Load(&domain.RenderedDocument{}); !errors.Is(err, domain.ErrEngineClosed) {
		t.Errorf("Load after Close error = %v, want ErrEngineClosed", err)
	}
}

// TestHost_StaleEventNeverReachesSink 测试完整的过期代拒绝链路：
// 旧代在后续 Load 之后投递的事件永远不会出现在 Sink 中。
func TestHost_StaleEventNeverReachesSink(t *testing.T) {
	engine := &fakeEngine{}
	s := sink.New(50)
	logger := testLogger()

	var h *Host
	r := relay.New(liveFunc(func() string { return h.Live() }), s, nil, logger)
	h = NewHost(engine, r.Accept, nil, logger)

	h.Load(&domain.RenderedDocument{})
	oldEmit := engine.emits[0]

	// 来宾在旧代存活时的输出正常通过
	oldEmit(domain.Envelope{Kind: domain.KindConsole, Method: "log", Message: "before"})
	if s.Len() != 1 {
		t.Fatalf("live event did not reach sink, len = %d", s.Len())
	}

	// 重载之后旧代的迟到输出必须被丢弃
	h.Load(&domain.RenderedDocument{})
	oldEmit(domain.Envelope{Kind: domain.KindConsole, Method: "log", Message: "late"})

	all := s.All()
	if len(all) != 1 || all[0].Message != "before" {
		t.Errorf("stale event reached the sink: %v", all)
	}
}

// liveFunc 以函数适配 relay.LiveSource。
type liveFunc func() string

func (f liveFunc) Live() string { return f() }
