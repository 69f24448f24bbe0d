package executor

import (
	"strings"
	"testing"
)

func TestLogWriterSplitsAndLimitsLines(t *testing.T) {
	var lines []string
	lw := newLogWriter("[a] ", 10, func(s string) { lines = append(lines, s) })
	_, _ = lw.Write([]byte("one\ntw"))
	_, _ = lw.Write([]byte("o\n\n" + strings.Repeat("x", 30) + "\nlast"))
	lw.Flush()

	want := []string{"[a] one", "[a] two", "[a] xxxxxxxxxx...", "[a] last"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
}

func TestTailBufferKeepsSuffix(t *testing.T) {
	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	if got := b.String(); got != "cdefg" {
		t.Fatalf("tail = %q", got)
	}
	_, _ = b.Write([]byte("0123456789"))
	if got := b.String(); got != "56789" {
		t.Fatalf("tail = %q", got)
	}
}
