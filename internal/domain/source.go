// Package domain 定义了实时预览服务的核心领域模型。
package domain

// MaxFragmentSize 是单个源文本片段允许的最大字节数（1 MiB）。
// 超出该限制的编辑请求在 API 边界被拒绝，不会进入调度器。
const MaxFragmentSize = 1 << 20

// SourceSet 表示外部编辑器提供的三段源文本。
// 三段文本对核心而言是不透明字符串，由编辑器在每次击键时整体替换；
// 核心不持久化、不增量修改这些文本。
type SourceSet struct {
	// Markup 内容区域的标记文本
	Markup string `json:"markup"`
	// Styles 样式区域的样式文本
	Styles string `json:"styles"`
	// Script 来宾脚本文本（wasm 引擎下为 base64 编码的模块）
	Script string `json:"script"`
}

// Validate 校验每个片段的大小是否在允许范围内。
// 片段内容本身不做任何解析或清洗，内容安全由沙箱隔离保证。
func (s SourceSet) Validate() error {
	if len(s.Markup) > MaxFragmentSize ||
		len(s.Styles) > MaxFragmentSize ||
		len(s.Script) > MaxFragmentSize {
		return ErrFragmentTooLarge
	}
	return nil
}

// Equal 判断两个 SourceSet 内容是否一致。
// 调度器用它判断构建开始后源文本是否发生了变化。
func (s SourceSet) Equal(other SourceSet) bool {
	return s.Markup == other.Markup &&
		s.Styles == other.Styles &&
		s.Script == other.Script
}
