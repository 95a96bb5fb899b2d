// Package sandbox 实现来宾代码的隔离执行。
// 本文件实现基于 goja 解释器的 JavaScript 引擎。
package sandbox

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/sirupsen/logrus"
)

// lineRe 从 goja 的错误文本中提取行号。
// 语法错误形如 "SyntaxError: script.js: Line 3:10 ..."，
// 运行时异常栈帧形如 "at script.js:3:5(7)"。
var lineRe = regexp.MustCompile(`(?:script\.js:|Line )(\d+)`)

// GojaEngine 在进程内的 goja 解释器中执行来宾脚本。
// 每次 Launch 创建全新的 goja.Runtime：解释器没有宿主对象、
// 没有模块系统、没有网络，来宾脚本只能通过插桩前导绑定的
// __lumen_emit 发射事件。
type GojaEngine struct {
	logger *logrus.Logger
}

// NewGojaEngine 创建 goja 引擎。
func NewGojaEngine(logger *logrus.Logger) *GojaEngine {
	return &GojaEngine{logger: logger}
}

// Name 实现 Engine。
func (e *GojaEngine) Name() string { return "goja" }

// gojaInstance 是一次 goja 执行的句柄。
type gojaInstance struct {
	vm   *goja.Runtime
	done chan struct{}
	err  error
}

func (i *gojaInstance) Done() <-chan struct{} { return i.done }
func (i *gojaInstance) Err() error            { return i.err }

// Close 中断解释器。对已结束的执行是空操作。
func (i *gojaInstance) Close() error {
	i.vm.Interrupt("generation disposed")
	return nil
}

// Launch 实现 Engine。
// 前导在用户脚本之前执行，保证插桩覆盖来宾全程；前导自身的编译或
// 执行失败是宿主侧故障（插桩损坏），而用户脚本的语法错误和运行时
// 异常都规范化为恰好一条 error 事件。
func (e *GojaEngine) Launch(ctx context.Context, doc *domain.RenderedDocument, emit EmitFunc) (Instance, error) {
	vm := goja.New()

	// 清除可能被宿主集成注入的危险全局对象，计时器为空操作：
	// 全量重载的隔离模型里不存在跨代存活的定时回调
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })

	// 绑定事件发射通道，这是来宾触达宿主的唯一路径
	vm.Set("__lumen_emit", func(call goja.FunctionCall) goja.Value {
		emit(envelopeFromValue(call.Argument(0)))
		return goja.Undefined()
	})

	preamblePrg, err := goja.Compile("preamble.js", doc.Preamble, false)
	if err != nil {
		return nil, errors.Join(domain.ErrSandboxFault, err)
	}

	inst := &gojaInstance{vm: vm, done: make(chan struct{})}

	// 监听上下文取消，取消即中断解释器
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("generation disposed")
		case <-inst.done:
		}
	}()

	go func() {
		defer close(inst.done)

		if _, err := vm.RunProgram(preamblePrg); err != nil {
			// 插桩前导失败意味着上下文不可用，属于宿主侧故障
			inst.err = errors.Join(domain.ErrSandboxFault, err)
			return
		}

		prg, err := goja.Compile("script.js", doc.Script, false)
		if err != nil {
			emit(errorEnvelope(err.Error(), extractLine(err.Error())))
			return
		}

		if _, err := vm.RunProgram(prg); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				// 被取代或关停时的中断不是来宾错误
				e.logger.WithField("reason", interrupted.Value()).Debug("Guest execution interrupted")
				return
			}

			var ex *goja.Exception
			if errors.As(err, &ex) {
				emit(errorEnvelope(ex.Value().String(), extractLine(ex.String())))
				return
			}
			emit(errorEnvelope(err.Error(), extractLine(err.Error())))
		}
	}()

	return inst, nil
}

// errorEnvelope 构造一条来宾 error 事件。
func errorEnvelope(message string, line int) domain.Envelope {
	return domain.Envelope{
		Kind:        domain.KindError,
		Message:     message,
		File:        "script.js",
		Line:        line,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// extractLine 尽力从 goja 错误文本中提取行号，找不到时返回 0。
func extractLine(s string) int {
	m := lineRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// envelopeFromValue 把来宾发射的 JS 对象转换为跨边界消息。
// 字段缺失或类型不符时保留零值，由中继按畸形载荷处理。
func envelopeFromValue(v goja.Value) domain.Envelope {
	var env domain.Envelope

	obj, ok := v.Export().(map[string]interface{})
	if !ok {
		return env
	}

	if s, ok := obj["kind"].(string); ok {
		env.Kind = s
	}
	if s, ok := obj["method"].(string); ok {
		env.Method = s
	}
	if s, ok := obj["message"].(string); ok {
		env.Message = s
	}
	if s, ok := obj["file"].(string); ok {
		env.File = s
	}
	env.Line = int(numberField(obj, "line"))
	env.TimestampMs = numberField(obj, "timestampMs")
	return env
}

// numberField 读取 goja 导出的数值字段（整数导出为 int64，否则 float64）。
func numberField(obj map[string]interface{}, key string) int64 {
	switch n := obj[key].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
