package utils

import (
	"reflect"
	"strings"
	"testing"
)

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty string", "", 10, ""},
		{"zero maxLen", "hello", 0, ""},
		{"negative maxLen", "hello", -1, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"maxLen 1", "hello", 1, "h"},
		{"maxLen 3", "hello", 3, "h"},
		{"maxLen 4", "hello", 4, "h..."},
		{"unicode preserved", "你好世界", 4, "你好世界"},
		{"unicode truncate", "你好世界test", 6, "你好世..."},
		{"unicode short limit", "世界", 1, "世"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeTruncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{
		{"plain", "Decompiling script.rpyc", "Decompiling script.rpyc"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"color", "\x1b[31mfailed\x1b[0m", "failed"},
		{"multi param", "\x1b[1;33;40mwarn\x1b[0m", "warn"},
		{"cursor", "\x1b[2Kdone", "done"},
		{"control chars", "a\x00b\x07c\x7f", "abc"},
		{"incomplete escape", "x\x1b[", "x"},
		{"lone escape", "\x1bA", "A"},
		{"utf8 kept", "翻译 ok", "翻译 ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripANSI(tt.s); got != tt.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestCleanLine(t *testing.T) {
	if got := CleanLine("\x1b[32mok\x1b[0m\tdone  \r", 0); got != "ok done" {
		t.Fatalf("CleanLine() = %q", got)
	}
	if got := CleanLine(strings.Repeat("x", 50), 10); got != "xxxxxxx..." {
		t.Fatalf("CleanLine() = %q", got)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("first\r\n\n  \n\x1b[31msecond\x1b[0m\n", 0)
	want := []string{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitLines() = %q, want %q", got, want)
	}
	if got := SplitLines("", 0); got != nil {
		t.Fatalf("SplitLines(\"\") = %q", got)
	}
}

func TestPlural(t *testing.T) {
	if Plural(1, "file", "files") != "file" || Plural(0, "file", "files") != "files" || Plural(3, "file", "files") != "files" {
		t.Fatal("unexpected plural forms")
	}
}

func BenchmarkCleanLine(b *testing.B) {
	s := strings.Repeat("\x1b[31mred\x1b[0m text ", 50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CleanLine(s, 200)
	}
}
