// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 logs 命令：查看或跟随控制台条目。
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// logsCmd 查看控制台缓冲中保留的条目，或通过 WebSocket 流实时跟随。
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View guest console output",
	Long: `View the console entries currently retained by the service.

Examples:
  # View retained entries
  lumenctl logs

  # Follow realtime console output (WebSocket stream)
  lumenctl logs --follow

  # Follow errors only
  lumenctl logs --follow --severity error

  # Output as JSON
  lumenctl logs -o json`,
	RunE: runLogs,
}

var (
	logsFollow   bool
	logsSeverity string
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow realtime console output")
	logsCmd.Flags().StringVar(&logsSeverity, "severity", "", "Filter by severity (info/warn/error)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	client := NewClient()
	printer := NewPrinter()

	if logsFollow {
		return followLogs(client, printer)
	}

	entries, evicted, err := client.ListConsole()
	if err != nil {
		return fmt.Errorf("failed to list console entries: %w", err)
	}
	if logsSeverity != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Severity == logsSeverity {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	return printer.PrintConsoleEntries(entries, evicted)
}

// followLogs 通过 WebSocket 流跟随控制台条目，Ctrl+C 退出。
func followLogs(client *Client, printer *Printer) error {
	wsURL := client.StreamURL()
	if logsSeverity != "" {
		wsURL += "?severity=" + logsSeverity
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect console stream: %w", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	fmt.Println("Following console output (Ctrl+C to stop)...")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("console stream closed: %w", err)
		}

		var entry ConsoleEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if err := printer.PrintConsoleEntry(entry); err != nil {
			return err
		}
	}
}
