// Package assembler 负责把三段源文本装配为一份自包含的可执行文档。
package assembler

import (
	"strings"
	"testing"

	"github.com/lumenlab/lumen/internal/domain"
)

// TestAssemble_ContainsFragments 测试用户样式和标记被原样嵌入各自区域。
func TestAssemble_ContainsFragments(t *testing.T) {
	tests := []struct {
		name string
		set  domain.SourceSet
	}{
		{
			name: "plain fragments",
			set: domain.SourceSet{
				Markup: "<h1>hello</h1>",
				Styles: "h1 { color: rebeccapurple; }",
				Script: `console.log("ready");`,
			},
		},
		{
			name: "empty fragments",
			set:  domain.SourceSet{},
		},
		{
			name: "fragments with special characters",
			set: domain.SourceSet{
				Markup: `<div data-x="a&b"><!-- comment --></div>`,
				Styles: `.x::before { content: "<>"; }`,
				Script: "var s = '</scr' + 'ipt>';",
			},
		},
		{
			name: "multiline fragments",
			set: domain.SourceSet{
				Markup: "<ul>\n<li>one</li>\n<li>two</li>\n</ul>",
				Styles: "ul {\n  list-style: none;\n}",
				Script: "for (var i = 0; i < 3; i++) {\n  console.log(i);\n}",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Assemble(tt.set)

			if !strings.Contains(doc.Text, tt.set.Styles) {
				t.Errorf("document does not contain styles fragment %q", tt.set.Styles)
			}
			if !strings.Contains(doc.Text, tt.set.Markup) {
				t.Errorf("document does not contain markup fragment %q", tt.set.Markup)
			}
			if !strings.Contains(doc.Text, tt.set.Script) {
				t.Errorf("document does not contain script fragment %q", tt.set.Script)
			}
			if doc.Script != tt.set.Script {
				t.Errorf("Script region = %q, want %q", doc.Script, tt.set.Script)
			}
		})
	}
}

// TestAssemble_RegionOrder 测试文档区域的严格顺序：
// 基线样式 → 用户样式 → 用户标记 → 插桩前导 → 用户脚本。
// 前导先于用户脚本是插桩覆盖来宾全程执行的关键保证。
func TestAssemble_RegionOrder(t *testing.T) {
	doc := Assemble(domain.SourceSet{
		Markup: "MARKUP-SENTINEL",
		Styles: "STYLES-SENTINEL",
		Script: "SCRIPT-SENTINEL",
	})

	regions := []string{
		`data-lumen-region="baseline"`,
		"STYLES-SENTINEL",
		"MARKUP-SENTINEL",
		`data-lumen-region="preamble"`,
		"SCRIPT-SENTINEL",
	}

	last := -1
	for _, r := range regions {
		idx := strings.Index(doc.Text, r)
		if idx < 0 {
			t.Fatalf("region %q not found in document", r)
		}
		if idx <= last {
			t.Errorf("region %q out of order (index %d, previous %d)", r, idx, last)
		}
		last = idx
	}

	// 前导必须出现在用户脚本之前，且用户脚本被 try/catch 包装
	preambleIdx := strings.Index(doc.Text, "__lumen_trap")
	scriptIdx := strings.Index(doc.Text, "SCRIPT-SENTINEL")
	if preambleIdx < 0 || preambleIdx >= scriptIdx {
		t.Error("instrumentation preamble must precede the user script in document order")
	}
	if !strings.Contains(doc.Text, "} catch (err) { __lumen_trap(err); }") {
		t.Error("user script is not wrapped in the error trap")
	}
}

// TestAssemble_ConsoleInterception 测试前导重定义了所有 console 原语。
func TestAssemble_ConsoleInterception(t *testing.T) {
	doc := Assemble(domain.SourceSet{})

	for _, method := range []string{"log", "info", "warn", "error", "debug"} {
		if !strings.Contains(doc.Preamble, method+`: hook("`+method+`")`) {
			t.Errorf("preamble does not intercept console.%s", method)
		}
	}
	if !strings.Contains(doc.Preamble, `kind: "console"`) {
		t.Error("preamble does not forward console events")
	}
	if !strings.Contains(doc.Preamble, `kind: "error"`) {
		t.Error("preamble does not forward error events")
	}
}

// TestAssemble_Total 测试装配对任意输入都不会 panic 并总是返回文档。
func TestAssemble_Total(t *testing.T) {
	inputs := []domain.SourceSet{
		{},
		{Markup: strings.Repeat("<", 10000)},
		{Styles: "\x00\x01\x02"},
		{Script: strings.Repeat("}", 500)},
		{Markup: "</script></style></body></html>"},
	}

	for _, set := range inputs {
		doc := Assemble(set)
		if doc.Text == "" {
			t.Error("Assemble returned an empty document")
		}
		if doc.AssembledAt.IsZero() {
			t.Error("AssembledAt is zero")
		}
	}
}
