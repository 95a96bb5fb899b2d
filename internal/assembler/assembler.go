// Package assembler 负责把三段源文本装配为一份自包含的可执行文档。
// 装配是纯函数：对任意输入都成功返回，从不报错、从不触达外部状态。
// 产出的文档按严格顺序包含基线样式、用户样式区域、用户标记区域、
// 插桩前导脚本和包装后的用户脚本，保证插桩在来宾整个执行期内生效。
package assembler

import (
	"strings"
	"time"

	"github.com/lumenlab/lumen/internal/domain"
)

// baselineStyles 是文档的默认基线呈现，先于用户样式声明，
// 因此任何用户规则都可以覆盖它。
const baselineStyles = `html, body { margin: 0; padding: 8px; font-family: system-ui, -apple-system, sans-serif; font-size: 14px; color: #1a1a2e; background: #ffffff; }`

// preamble 是注入在用户脚本之前的插桩前导。
// 它重定义来宾的 console 原语，把每次调用转发为结构化 console 事件；
// 并安装全局错误陷阱，把未捕获错误转发为结构化 error 事件且阻止默认上抛。
// 事件通过宿主绑定的 __lumen_emit 通道离开沙箱；没有该通道时降级为空操作，
// 保证文档在任何宿主环境下都能独立执行。
const preamble = `(function () {
  var g = (typeof globalThis !== "undefined") ? globalThis : (function () { return this; })();
  var emit = (typeof __lumen_emit === "function") ? __lumen_emit : function () {};
  function format(args) {
    var parts = [];
    for (var i = 0; i < args.length; i++) {
      var a = args[i];
      if (a !== null && typeof a === "object") {
        try { parts.push(JSON.stringify(a)); } catch (e) { parts.push(String(a)); }
      } else {
        parts.push(String(a));
      }
    }
    return parts.join(" ");
  }
  function hook(method) {
    return function () {
      emit({ kind: "console", method: method, message: format(arguments), timestampMs: Date.now() });
    };
  }
  g.console = {
    log: hook("log"),
    info: hook("info"),
    warn: hook("warn"),
    error: hook("error"),
    debug: hook("debug")
  };
  g.__lumen_trap = function (err) {
    var message = (err && err.message) ? err.message : String(err);
    var line = (err && err.lineNumber) ? err.lineNumber : 0;
    emit({ kind: "error", message: message, file: "script.js", line: line, timestampMs: Date.now() });
  };
  if (typeof window !== "undefined" && window.addEventListener) {
    window.addEventListener("error", function (ev) {
      emit({ kind: "error", message: ev.message || "uncaught error", file: ev.filename || "script.js", line: ev.lineno || 0, timestampMs: Date.now() });
      ev.preventDefault();
    });
  }
})();`

// Assemble 把一个源文本集合装配为一代可执行文档。
// 用户样式和标记原样嵌入各自区域，不做任何解析或转义；
// 插桩前导在文档顺序上严格先于用户脚本，用户脚本包装在
// try/catch 中，抛出的异常恰好产生一个 error 事件。
// 抛出点之后的代码不会执行，这是正常的脚本终止语义。
func Assemble(set domain.SourceSet) domain.RenderedDocument {
	var b strings.Builder
	b.Grow(len(preamble) + len(set.Markup) + len(set.Styles) + len(set.Script) + 512)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<style data-lumen-region=\"baseline\">\n")
	b.WriteString(baselineStyles)
	b.WriteString("\n</style>\n")
	b.WriteString("<style data-lumen-region=\"styles\">\n")
	b.WriteString(set.Styles)
	b.WriteString("\n</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<div data-lumen-region=\"markup\">\n")
	b.WriteString(set.Markup)
	b.WriteString("\n</div>\n")
	b.WriteString("<script data-lumen-region=\"preamble\">\n")
	b.WriteString(preamble)
	b.WriteString("\n</script>\n")
	b.WriteString("<script data-lumen-region=\"script\">\ntry {\n")
	b.WriteString(set.Script)
	b.WriteString("\n} catch (err) { __lumen_trap(err); }\n</script>\n")
	b.WriteString("</body>\n</html>\n")

	return domain.RenderedDocument{
		Text:        b.String(),
		Preamble:    preamble,
		Script:      set.Script,
		AssembledAt: time.Now(),
	}
}
