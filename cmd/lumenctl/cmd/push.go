// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 push 命令：把本地片段文件推送到预览服务。
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// pushCmd 把本地片段文件的内容作为一次编辑推送到服务。
// --watch 模式下持续监视目录，保存即推送。
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push source fragments to the preview service",
	Long: `Push the contents of local fragment files as one edit.

Examples:
  # Push three fragment files once
  lumenctl push --markup index.html --styles style.css --script script.js

  # Push only the script fragment
  lumenctl push --script script.js

  # Watch a directory and push on every save
  lumenctl push --watch ./src`,
	RunE: runPush,
}

var (
	pushMarkup string
	pushStyles string
	pushScript string
	pushWatch  string
)

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().StringVar(&pushMarkup, "markup", "", "Markup fragment file")
	pushCmd.Flags().StringVar(&pushStyles, "styles", "", "Styles fragment file")
	pushCmd.Flags().StringVar(&pushScript, "script", "", "Script fragment file")
	pushCmd.Flags().StringVarP(&pushWatch, "watch", "w", "", "Watch a directory (index.html/style.css/script.js) and push on change")
}

func runPush(cmd *cobra.Command, args []string) error {
	client := NewClient()

	if pushWatch != "" {
		return watchAndPush(client, pushWatch)
	}

	if pushMarkup == "" && pushStyles == "" && pushScript == "" {
		return fmt.Errorf("nothing to push: specify --markup, --styles, --script or --watch")
	}

	set, err := readFragments(pushMarkup, pushStyles, pushScript)
	if err != nil {
		return err
	}
	if err := client.PushSource(set); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	fmt.Println("Pushed. Rebuild scheduled.")
	return nil
}

// readFragments 读取指定的片段文件；未指定的片段为空。
func readFragments(markup, styles, script string) (SourceSet, error) {
	var set SourceSet
	read := func(path string, dst *string) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		*dst = string(data)
		return nil
	}
	if err := read(markup, &set.Markup); err != nil {
		return set, err
	}
	if err := read(styles, &set.Styles); err != nil {
		return set, err
	}
	if err := read(script, &set.Script); err != nil {
		return set, err
	}
	return set, nil
}

// watchAndPush 监视目录中约定命名的三个片段文件，变更即推送。
// 服务端的去抖窗口负责合并连续保存。
func watchAndPush(client *Client, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	pushAll := func() error {
		set, err := readFragmentsFromDir(dir)
		if err != nil {
			return err
		}
		return client.PushSource(set)
	}

	// 初始推送
	if err := pushAll(); err != nil {
		return fmt.Errorf("initial push failed: %w", err)
	}
	fmt.Printf("Watching %s (Ctrl+C to stop)...\n", dir)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			switch filepath.Base(event.Name) {
			case "index.html", "style.css", "script.js":
			default:
				continue
			}
			if err := pushAll(); err != nil {
				fmt.Fprintf(os.Stderr, "push failed: %v\n", err)
				continue
			}
			fmt.Printf("Pushed %s\n", filepath.Base(event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

// readFragmentsFromDir 按约定文件名读取目录中的三个片段，缺失的按空片段处理。
func readFragmentsFromDir(dir string) (SourceSet, error) {
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return string(data)
	}
	return SourceSet{
		Markup: read("index.html"),
		Styles: read("style.css"),
		Script: read("script.js"),
	}, nil
}
