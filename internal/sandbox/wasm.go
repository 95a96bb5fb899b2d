// Package sandbox 实现来宾代码的隔离执行。
// 本文件实现基于 wazero 的 WASM 引擎：脚本片段是 base64 编码的
// WASI 模块，标准输出按行转发为 console 事件，trap 转发为 error 事件。
package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/lumenlab/lumen/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmEngine 在 wazero 运行时中执行来宾 WASM 模块。
// 模块只获得 WASI 的标准输入输出能力：没有文件系统预开目录、
// 没有网络、没有环境变量，输出流是它与宿主的唯一通道。
type WasmEngine struct {
	logger *logrus.Logger
}

// NewWasmEngine 创建 wasm 引擎。
func NewWasmEngine(logger *logrus.Logger) *WasmEngine {
	return &WasmEngine{logger: logger}
}

// Name 实现 Engine。
func (e *WasmEngine) Name() string { return "wasm" }

// wasmInstance 是一次 WASM 执行的句柄。
type wasmInstance struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (i *wasmInstance) Done() <-chan struct{} { return i.done }
func (i *wasmInstance) Err() error            { return i.err }

// Close 取消执行上下文，运行中的模块被强制终止。
func (i *wasmInstance) Close() error {
	i.cancel()
	return nil
}

// Launch 实现 Engine。
// 解码或编译失败是上下文初始化故障；模块 _start 阶段的 trap 是
// 来宾运行时错误，转发为恰好一条 error 事件。
func (e *WasmEngine) Launch(ctx context.Context, doc *domain.RenderedDocument, emit EmitFunc) (Instance, error) {
	wasmBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(doc.Script))
	if err != nil {
		return nil, errors.Join(domain.ErrSandboxFault, err)
	}
	if len(wasmBytes) == 0 {
		return nil, errors.Join(domain.ErrSandboxFault, errors.New("empty wasm module"))
	}

	runCtx, cancel := context.WithCancel(ctx)

	// WithCloseOnContextDone 让取消传播为模块终止，
	// 这是处置被取代的一代时中断死循环来宾的手段
	runtime := wazero.NewRuntimeWithConfig(runCtx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	wasi_snapshot_preview1.MustInstantiate(runCtx, runtime)

	compiled, err := runtime.CompileModule(runCtx, wasmBytes)
	if err != nil {
		runtime.Close(context.Background())
		cancel()
		return nil, errors.Join(domain.ErrSandboxFault, err)
	}

	inst := &wasmInstance{cancel: cancel, done: make(chan struct{})}

	stdout := newLineEmitter(emit, "log")
	stderr := newLineEmitter(emit, "error")

	go func() {
		defer close(inst.done)
		defer cancel()
		defer runtime.Close(context.Background())

		cfg := wazero.NewModuleConfig().
			WithName("guest").
			WithStdout(stdout).
			WithStderr(stderr)

		// InstantiateModule 运行模块的 _start 入口
		mod, err := runtime.InstantiateModule(runCtx, compiled, cfg)
		stdout.Flush()
		stderr.Flush()

		if err != nil {
			if runCtx.Err() != nil {
				e.logger.Debug("Guest wasm execution interrupted")
				return
			}
			emit(domain.Envelope{
				Kind:        domain.KindError,
				Message:     err.Error(),
				File:        "module.wasm",
				TimestampMs: time.Now().UnixMilli(),
			})
			return
		}
		mod.Close(context.Background())
	}()

	return inst, nil
}

// lineEmitter 把输出流按行切分为 console 事件。
type lineEmitter struct {
	emit   EmitFunc
	method string
	buf    strings.Builder
}

func newLineEmitter(emit EmitFunc, method string) *lineEmitter {
	return &lineEmitter{emit: emit, method: method}
}

// Write 实现 io.Writer。wazero 从单个执行协程写入，无需加锁。
func (w *lineEmitter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			w.emitLine()
			continue
		}
		w.buf.WriteByte(b)
	}
	return len(p), nil
}

// Flush 把未以换行结束的残余输出作为一行发射。
func (w *lineEmitter) Flush() {
	if w.buf.Len() > 0 {
		w.emitLine()
	}
}

func (w *lineEmitter) emitLine() {
	line := w.buf.String()
	w.buf.Reset()
	w.emit(domain.Envelope{
		Kind:        domain.KindConsole,
		Method:      w.method,
		Message:     line,
		TimestampMs: time.Now().UnixMilli(),
	})
}
