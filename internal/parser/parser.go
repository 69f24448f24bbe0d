// Package parser reads the stdout of a decompiler process. Plain text output
// becomes log lines; JSON event lines additionally carry the file's outcome
// and any extracted translations.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"renpy-unapk/internal/utils"
)

const (
	lineReaderSize   = 64 * 1024
	lineMaxBytes     = 10 * 1024 * 1024
	linePreviewBytes = 256

	// MaxLogLineRunes bounds every log line kept from decompiler output.
	MaxLogLineRunes = 1000
)

type lineScratch struct {
	buf     []byte
	preview []byte
}

const maxPooledLineScratchCap = 1 << 20 // 1 MiB

var lineScratchPool = sync.Pool{
	New: func() any {
		return &lineScratch{
			buf:     make([]byte, 0, lineReaderSize),
			preview: make([]byte, 0, linePreviewBytes),
		}
	},
}

// Stream is everything collected from one decompiler run.
type Stream struct {
	LogLines []string
	// State is the state named by the last result event, "" when none was seen.
	State  string
	Error  string
	Output string

	Language string
	Dialogue map[string]json.RawMessage
	Strings  map[string]string

	Events int
}

// HasTranslations reports whether any translation event carried data.
func (s *Stream) HasTranslations() bool {
	return len(s.Dialogue) > 0 || len(s.Strings) > 0
}

// ParseEventStream reads r until EOF. With structured set, lines that decode
// as JSON objects with a known type are interpreted as events; every other
// line is kept as a sanitized log line.
func ParseEventStream(r io.Reader, structured bool, warnFn func(string)) *Stream {
	if warnFn == nil {
		warnFn = func(string) {}
	}
	out := &Stream{}

	reader := bufio.NewReaderSize(r, lineReaderSize)
	scratch := lineScratchPool.Get().(*lineScratch)
	scratch.buf = scratch.buf[:0]
	scratch.preview = scratch.preview[:0]
	defer func() {
		if cap(scratch.buf) > maxPooledLineScratchCap {
			scratch.buf = make([]byte, 0, lineReaderSize)
		}
		lineScratchPool.Put(scratch)
	}()

	for {
		line, tooLong, err := readLineWithLimit(reader, lineMaxBytes, linePreviewBytes, scratch)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				warnFn("Read decompiler output: " + err.Error())
			}
			break
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if tooLong {
			warnFn(fmt.Sprintf("Skipped overlong output line (> %d bytes): %s", lineMaxBytes, TruncateBytes(trimmed, 100)))
			continue
		}
		if structured && trimmed[0] == '{' && out.handleEvent(trimmed, warnFn) {
			continue
		}
		out.addLog(string(trimmed))
	}
	return out
}

func (s *Stream) addLog(line string) {
	if line = utils.CleanLine(line, MaxLogLineRunes); line != "" {
		s.LogLines = append(s.LogLines, line)
	}
}

// handleEvent applies one JSON event. It returns false when the line is not
// an event and should be treated as plain output.
func (s *Stream) handleEvent(line []byte, warnFn func(string)) bool {
	var ev Event
	// line points into the reader's buffer; raw dialogue values must outlive it.
	if err := json.Unmarshal(bytes.Clone(line), &ev); err != nil {
		return false
	}
	switch ev.Type {
	case EventLog:
		msg := ev.Message
		if lvl := strings.ToLower(strings.TrimSpace(ev.Level)); lvl != "" && lvl != "info" {
			msg = strings.ToUpper(lvl) + ": " + msg
		}
		s.addLog(msg)
	case EventResult:
		s.State = strings.ToLower(strings.TrimSpace(ev.State))
		s.Error = utils.CleanLine(ev.Error, MaxLogLineRunes)
		if ev.Output != "" {
			s.Output = ev.Output
		}
	case EventTranslation:
		if ev.Language != "" {
			s.Language = ev.Language
		}
		if len(ev.Dialogue) > 0 && s.Dialogue == nil {
			s.Dialogue = make(map[string]json.RawMessage, len(ev.Dialogue))
		}
		for k, v := range ev.Dialogue {
			s.Dialogue[k] = v
		}
		if len(ev.Strings) > 0 && s.Strings == nil {
			s.Strings = make(map[string]string, len(ev.Strings))
		}
		for k, v := range ev.Strings {
			s.Strings[k] = v
		}
	default:
		if ev.Type == "" {
			return false
		}
		warnFn(fmt.Sprintf("Ignoring unknown decompiler event %q", ev.Type))
	}
	s.Events++
	return true
}

func readLineWithLimit(r *bufio.Reader, maxBytes int, previewBytes int, scratch *lineScratch) (line []byte, tooLong bool, err error) {
	if r == nil {
		return nil, false, errors.New("reader is nil")
	}
	if maxBytes <= 0 {
		return nil, false, errors.New("maxBytes must be > 0")
	}
	if scratch == nil {
		scratch = &lineScratch{}
	}

	part, isPrefix, err := r.ReadLine()
	if err != nil {
		return nil, false, err
	}
	if !isPrefix {
		if len(part) > maxBytes {
			return part[:min(len(part), previewBytes)], true, nil
		}
		return part, false, nil
	}

	preview := append(scratch.preview[:0], part[:min(previewBytes, len(part))]...)
	buf := append(scratch.buf[:0], part...)
	tooLong = len(buf) > maxBytes

	for isPrefix {
		part, isPrefix, err = r.ReadLine()
		if err != nil {
			return nil, tooLong, err
		}
		if len(preview) < previewBytes {
			preview = append(preview, part[:min(previewBytes-len(preview), len(part))]...)
		}
		if tooLong {
			continue
		}
		if len(buf)+len(part) > maxBytes {
			tooLong = true
			continue
		}
		buf = append(buf, part...)
	}

	scratch.preview = preview
	scratch.buf = buf
	if tooLong {
		return preview, true, nil
	}
	return buf, false, nil
}

func TruncateBytes(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	if maxLen < 0 {
		return ""
	}
	return string(b[:maxLen]) + "..."
}
