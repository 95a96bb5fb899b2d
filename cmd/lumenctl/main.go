// Package main 是 lumenctl 命令行工具的入口点。
// lumenctl 用于操作实时预览服务：推送源文本、跟随控制台输出、
// 查看构建指标和管线状态。
package main

import (
	"os"

	"github.com/lumenlab/lumen/cmd/lumenctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
