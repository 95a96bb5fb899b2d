package cmd

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lumenlab/lumen/internal/events"
)

// TestFormatEvent 测试总线事件的单行格式化。
func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 30, 45, 123_000_000, time.UTC)

	tests := []struct {
		name  string
		event events.Event
		want  []string
	}{
		{
			name: "build completed with payload",
			event: events.Event{
				ID:        "gen-1",
				Type:      "preview.build.completed",
				Data:      json.RawMessage(`{"generation": "gen-1", "latency_ms": 12}`),
				Timestamp: ts,
			},
			want: []string{"10:30:45.123", "preview.build.completed", "gen-1", `"latency_ms":12`},
		},
		{
			name: "no payload",
			event: events.Event{
				ID:        "gen-2",
				Type:      "preview.build.failed",
				Timestamp: ts,
			},
			want: []string{"preview.build.failed", "gen-2"},
		},
		{
			name: "non-json payload kept verbatim",
			event: events.Event{
				ID:        "gen-3",
				Type:      "preview.console.entry",
				Data:      json.RawMessage("not-json"),
				Timestamp: ts,
			},
			want: []string{"preview.console.entry", "not-json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatEvent(&tt.event)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("formatEvent() = %q, missing %q", got, w)
				}
			}
		})
	}
}
