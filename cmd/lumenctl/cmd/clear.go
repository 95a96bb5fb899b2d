// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 clear 命令：清空控制台缓冲。
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// clearCmd 清空服务端的控制台缓冲。
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the console buffer",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := NewClient().ClearConsole(); err != nil {
		return fmt.Errorf("failed to clear console: %w", err)
	}
	fmt.Println("Console cleared.")
	return nil
}
