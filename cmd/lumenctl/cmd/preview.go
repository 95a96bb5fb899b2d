// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 preview 命令：获取最近装配的文档。
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// previewCmd 获取最近装配的一代文档并输出或保存。
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch the assembled preview document",
	Long: `Fetch the most recently assembled preview document.

Examples:
  # Print the document to stdout
  lumenctl preview

  # Save the document to a file
  lumenctl preview --out preview.html`,
	RunE: runPreview,
}

// previewOut 指定输出文件路径，为空时输出到标准输出。
var previewOut string

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewOut, "out", "", "Write the document to a file instead of stdout")
}

func runPreview(cmd *cobra.Command, args []string) error {
	client := NewClient()

	doc, generation, err := client.GetPreview()
	if err != nil {
		return fmt.Errorf("failed to fetch preview: %w", err)
	}

	if previewOut != "" {
		if err := os.WriteFile(previewOut, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", previewOut, err)
		}
		fmt.Printf("Saved generation %s to %s\n", shortGen(generation), previewOut)
		return nil
	}

	fmt.Print(doc)
	return nil
}
