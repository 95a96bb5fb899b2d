// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 builds 命令：查看最近构建的延迟指标。
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildsCmd 查看服务保留的构建延迟指标。
var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "View recent build latency metrics",
	Long: `View latency metrics of recently completed rebuilds.

Examples:
  # View recent builds
  lumenctl builds

  # Output as JSON
  lumenctl builds -o json`,
	RunE: runBuilds,
}

// buildsLimit 控制显示的指标数量，0 表示全部。
var buildsLimit int

func init() {
	rootCmd.AddCommand(buildsCmd)
	buildsCmd.Flags().IntVarP(&buildsLimit, "limit", "n", 0, "Number of builds to show (0 = all)")
}

func runBuilds(cmd *cobra.Command, args []string) error {
	client := NewClient()

	builds, err := client.ListBuilds()
	if err != nil {
		return fmt.Errorf("failed to list builds: %w", err)
	}
	if buildsLimit > 0 && len(builds) > buildsLimit {
		builds = builds[len(builds)-buildsLimit:]
	}
	return NewPrinter().PrintBuilds(builds)
}
