// Package cmd 提供 lumenctl 命令行工具的所有子命令实现。
// 本文件实现输出格式化打印功能，支持 table、json、yaml 三种格式。
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Printer 根据配置的输出格式把数据格式化后写到目标 writer。
type Printer struct {
	format string
	writer io.Writer
}

// NewPrinter 创建打印器，从 viper 配置读取 output 格式，默认 table。
func NewPrinter() *Printer {
	format := viper.GetString("output")
	if format == "" {
		format = "table"
	}
	return &Printer{
		format: format,
		writer: os.Stdout,
	}
}

func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = p.writer.Write(out)
	return err
}

// PrintConsoleEntries 打印控制台条目列表。
func (p *Printer) PrintConsoleEntries(entries []ConsoleEntry, evicted uint64) error {
	switch p.format {
	case "json":
		return p.printJSON(entries)
	case "yaml":
		return p.printYAML(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(p.writer, "No console entries.")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSEVERITY\tMESSAGE")
	for _, e := range entries {
		ts := time.UnixMilli(e.TimestampMs).Format("15:04:05.000")
		fmt.Fprintf(w, "%s\t%s\t%s\n", ts, e.Severity, e.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if evicted > 0 {
		fmt.Fprintf(p.writer, "\n%d older entries were evicted.\n", evicted)
	}
	return nil
}

// PrintConsoleEntry 打印实时流中的单条条目。
func (p *Printer) PrintConsoleEntry(e ConsoleEntry) error {
	switch p.format {
	case "json":
		return p.printJSON(e)
	case "yaml":
		return p.printYAML(e)
	}
	ts := time.UnixMilli(e.TimestampMs).Format("15:04:05.000")
	_, err := fmt.Fprintf(p.writer, "%s [%s] %s\n", ts, e.Severity, e.Message)
	return err
}

// PrintBuilds 打印构建延迟指标列表。
func (p *Printer) PrintBuilds(builds []BuildMetric) error {
	switch p.format {
	case "json":
		return p.printJSON(builds)
	case "yaml":
		return p.printYAML(builds)
	}

	if len(builds) == 0 {
		fmt.Fprintln(p.writer, "No builds yet.")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tGENERATION\tLATENCY")
	for _, b := range builds {
		ts := time.UnixMilli(b.TimestampMs).Format("15:04:05")
		fmt.Fprintf(w, "%s\t%s\t%dms\n", ts, shortGen(b.Generation), b.LatencyMs)
	}
	return w.Flush()
}

// PrintStatus 打印管线聚合状态。
func (p *Printer) PrintStatus(s *Status) error {
	switch p.format {
	case "json":
		return p.printJSON(s)
	case "yaml":
		return p.printYAML(s)
	}

	w := tabwriter.NewWriter(p.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", s.State)
	fmt.Fprintf(w, "Engine:\t%s\n", s.Engine)
	fmt.Fprintf(w, "Live generation:\t%s\n", shortGen(s.LiveGeneration))
	fmt.Fprintf(w, "Console entries:\t%d\n", s.ConsoleEntries)
	fmt.Fprintf(w, "Console evicted:\t%d\n", s.ConsoleEvicted)
	fmt.Fprintf(w, "Dropped (stale):\t%d\n", s.DroppedStale)
	fmt.Fprintf(w, "Dropped (invalid):\t%d\n", s.DroppedInvalid)
	fmt.Fprintf(w, "Uptime:\t%s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	return w.Flush()
}

// shortGen 截短代标识以便表格显示。
func shortGen(gen string) string {
	if len(gen) > 8 {
		return gen[:8]
	}
	if gen == "" {
		return "-"
	}
	return gen
}
