// Package domain 定义了实时预览服务的核心领域模型。
package domain

import (
	"strings"
	"testing"
)

// TestSeverityFromMethod 测试 console 方法名到严重级别的映射。
// 未知方法名必须降级为 info 而不是被拒绝。
func TestSeverityFromMethod(t *testing.T) {
	tests := []struct {
		method string
		want   Severity
	}{
		{"log", SeverityInfo},
		{"info", SeverityInfo},
		{"debug", SeverityInfo},
		{"warn", SeverityWarn},
		{"error", SeverityError},
		{"table", SeverityInfo}, // 未知方法降级为 info
		{"", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := SeverityFromMethod(tt.method); got != tt.want {
				t.Errorf("SeverityFromMethod(%q) = %v, want %v", tt.method, got, tt.want)
			}
		})
	}
}

// TestSeverity_IsValid 测试严重级别的有效性判断。
func TestSeverity_IsValid(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityInfo, true},
		{SeverityWarn, true},
		{SeverityError, true},
		{Severity("fatal"), false},
		{Severity(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := tt.severity.IsValid(); got != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.severity, got, tt.want)
			}
		})
	}
}

// TestSourceSet_Validate 测试源文本片段的大小校验。
func TestSourceSet_Validate(t *testing.T) {
	big := strings.Repeat("a", MaxFragmentSize+1)

	tests := []struct {
		name    string
		set     SourceSet
		wantErr bool
	}{
		{
			name:    "empty set",
			set:     SourceSet{},
			wantErr: false,
		},
		{
			name:    "small fragments",
			set:     SourceSet{Markup: "<p>hi</p>", Styles: "p{color:red}", Script: "console.log(1)"},
			wantErr: false,
		},
		{
			name:    "markup at limit",
			set:     SourceSet{Markup: strings.Repeat("a", MaxFragmentSize)},
			wantErr: false,
		},
		{
			name:    "markup too large",
			set:     SourceSet{Markup: big},
			wantErr: true,
		},
		{
			name:    "styles too large",
			set:     SourceSet{Styles: big},
			wantErr: true,
		},
		{
			name:    "script too large",
			set:     SourceSet{Script: big},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSourceSet_Equal 测试源文本集合的内容比较。
func TestSourceSet_Equal(t *testing.T) {
	a := SourceSet{Markup: "m", Styles: "s", Script: "j"}

	if !a.Equal(SourceSet{Markup: "m", Styles: "s", Script: "j"}) {
		t.Error("identical sets should be equal")
	}
	if a.Equal(SourceSet{Markup: "m", Styles: "s", Script: "other"}) {
		t.Error("sets with different scripts should not be equal")
	}
}
