// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 status 命令：查看管线聚合状态。
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd 查看预览管线的状态、存活代与丢弃计数。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View preview pipeline status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := NewClient()

	status, err := client.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return NewPrinter().PrintStatus(status)
}
