package executor

import (
	"bytes"

	"renpy-unapk/internal/utils"
)

const stderrLineLimit = 1000

// logWriter turns a decompiler's stderr into log lines. Each complete line is
// cleaned, prefixed and handed to emit; bytes past maxLen are dropped and the
// line is marked with "...".
type logWriter struct {
	prefix    string
	maxLen    int
	emit      func(string)
	pending   []byte
	truncated bool
}

func newLogWriter(prefix string, maxLen int, emit func(string)) *logWriter {
	if maxLen <= 0 {
		maxLen = stderrLineLimit
	}
	if emit == nil {
		emit = func(string) {}
	}
	return &logWriter{prefix: prefix, maxLen: maxLen, emit: emit}
}

func (lw *logWriter) Write(p []byte) (int, error) {
	n := len(p)
	for {
		chunk, rest, found := bytes.Cut(p, []byte{'\n'})
		lw.appendCapped(chunk)
		if !found {
			return n, nil
		}
		lw.endLine()
		p = rest
	}
}

// Flush emits a trailing line that was not newline terminated.
func (lw *logWriter) Flush() {
	if len(lw.pending) > 0 || lw.truncated {
		lw.endLine()
	}
}

func (lw *logWriter) appendCapped(chunk []byte) {
	room := lw.maxLen - len(lw.pending)
	if len(chunk) > room {
		chunk = chunk[:max(room, 0)]
		lw.truncated = true
	}
	lw.pending = append(lw.pending, chunk...)
}

func (lw *logWriter) endLine() {
	line := utils.SafeTruncate(utils.CleanLine(string(lw.pending), 0), lw.maxLen)
	if line != "" && lw.truncated {
		line += "..."
	}
	lw.pending = lw.pending[:0]
	lw.truncated = false
	if line != "" {
		lw.emit(lw.prefix + line)
	}
}

// tailBuffer keeps the last limit bytes written to it; the decompiler's
// stderr tail is attached to failed results.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 {
		b.data = append(b.data, p...)
		if over := len(b.data) - b.limit; over > 0 {
			b.data = append(b.data[:0], b.data[over:]...)
		}
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.data) }
