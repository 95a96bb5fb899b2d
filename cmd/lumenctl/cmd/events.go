// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现 events 命令：直接从 NATS JetStream 跟随服务发布的事件。
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lumenlab/lumen/internal/events"
)

// eventsCmd 跟随服务通过事件总线发布的构建/控制台事件。
// 与 logs --follow 不同，它不经过 HTTP API，直接消费 JetStream，
// 适合审计与编辑器集成侧的调试。
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow build and console events from the event bus",
	Long: `Follow events the service publishes on NATS JetStream.

Examples:
  # Follow build events (default subject)
  lumenctl events

  # Follow console entries
  lumenctl events --subject "preview.console.>"

  # Use a remote NATS server
  lumenctl events --nats-url nats://nats.example.com:4222`,
	RunE: runEvents,
}

var (
	eventsNatsURL string
	eventsSubject string
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsNatsURL, "nats-url", "nats://localhost:4222", "NATS server URL")
	eventsCmd.Flags().StringVar(&eventsSubject, "subject", "preview.build.>", "Subject to subscribe to")
}

func runEvents(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	bus, err := events.NewEventBus(eventsNatsURL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = bus.Subscribe(ctx, eventsSubject, func(event *events.Event) error {
		fmt.Println(formatEvent(event))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %q: %w", eventsSubject, err)
	}

	fmt.Printf("Following %s (Ctrl+C to stop)...\n", eventsSubject)
	<-ctx.Done()
	return nil
}

// formatEvent 把一条总线事件压成单行可读输出。
// Data 是合法 JSON 时紧凑内联，否则原样附在末尾。
func formatEvent(event *events.Event) string {
	line := fmt.Sprintf("%s  %-24s %s",
		event.Timestamp.Format("15:04:05.000"),
		event.Type,
		event.ID,
	)
	if len(event.Data) == 0 {
		return line
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, event.Data); err == nil {
		return line + "  " + buf.String()
	}
	return line + "  " + string(event.Data)
}
