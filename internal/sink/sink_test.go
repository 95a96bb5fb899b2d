// Package sink 实现有界、有序的控制台条目缓冲。
package sink

import (
	"fmt"
	"testing"

	"github.com/lumenlab/lumen/internal/domain"
)

// entry 构造测试用条目。
func entry(i int) domain.ConsoleEntry {
	return domain.ConsoleEntry{
		ID:       fmt.Sprintf("id-%d", i),
		Severity: domain.SeverityInfo,
		Message:  fmt.Sprintf("message %d", i),
	}
}

// TestSink_AppendAndOrder 测试追加保持到达顺序。
func TestSink_AppendAndOrder(t *testing.T) {
	s := New(10)

	for i := 0; i < 5; i++ {
		s.Append(entry(i))
	}

	all := s.All()
	if len(all) != 5 {
		t.Fatalf("Len = %d, want 5", len(all))
	}
	for i, e := range all {
		if e.Message != fmt.Sprintf("message %d", i) {
			t.Errorf("entry %d = %q, out of order", i, e.Message)
		}
	}
}

// TestSink_BoundedEviction 测试超限时先淘汰最老条目，
// 任意次追加后长度永不超过上限且保留的是最近的条目。
func TestSink_BoundedEviction(t *testing.T) {
	s := New(50)

	for i := 0; i < 500; i++ {
		s.Append(entry(i))
		if s.Len() > 50 {
			t.Fatalf("sink length %d exceeds cap after %d appends", s.Len(), i+1)
		}
	}

	all := s.All()
	if len(all) != 50 {
		t.Fatalf("Len = %d, want 50", len(all))
	}
	// 保留的必须是最近的 50 条（450..499），且顺序不变
	for i, e := range all {
		want := fmt.Sprintf("message %d", 450+i)
		if e.Message != want {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want)
		}
	}
	if s.Evicted() != 450 {
		t.Errorf("Evicted = %d, want 450", s.Evicted())
	}
}

// TestSink_DefaultCap 测试非法上限回退到默认值。
func TestSink_DefaultCap(t *testing.T) {
	tests := []struct {
		max  int
		want int
	}{
		{0, DefaultMaxEntries},
		{-1, DefaultMaxEntries},
		{7, 7},
	}

	for _, tt := range tests {
		if got := New(tt.max).Cap(); got != tt.want {
			t.Errorf("New(%d).Cap() = %d, want %d", tt.max, got, tt.want)
		}
	}
}

// TestSink_Clear 测试清空后可以继续追加。
func TestSink_Clear(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Append(entry(i))
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", s.Len())
	}

	s.Append(entry(99))
	all := s.All()
	if len(all) != 1 || all[0].Message != "message 99" {
		t.Errorf("append after clear: got %v", all)
	}
}

// TestSink_SnapshotIsolation 测试 All 返回的是副本，
// 后续追加不会影响已取得的快照。
func TestSink_SnapshotIsolation(t *testing.T) {
	s := New(10)
	s.Append(entry(1))

	snap := s.All()
	s.Append(entry(2))

	if len(snap) != 1 {
		t.Errorf("snapshot length changed after append: %d", len(snap))
	}
}
