package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ToolName is the fixed name used for log file prefixes and user-facing output.
const ToolName = "renpy-unapk"

// LogPrefixes returns the log file name prefixes owned by this tool.
func LogPrefixes() []string { return []string{ToolName} }

// PrimaryLogPrefix returns the prefix new log files are created with.
func PrimaryLogPrefix() string { return ToolName }

const maxSuffixLen = 64

// Logger writes JSON lines to a per-process log file and optionally mirrors
// them to a human-readable console writer. A nil *Logger is a valid no-op
// logger.
type Logger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	console io.Writer
	zl      zerolog.Logger
	closed  bool
}

// NewLogger creates $TMPDIR/renpy-unapk-<pid>.log.
func NewLogger() (*Logger, error) {
	return NewLoggerWithSuffix("")
}

// NewLoggerWithSuffix creates $TMPDIR/renpy-unapk-<pid>-<suffix>.log.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d", PrimaryLogPrefix(), os.Getpid())
	if strings.TrimSpace(suffix) != "" {
		name += "-" + sanitizeLogSuffix(suffix)
	}
	path := filepath.Join(os.TempDir(), name+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	l := &Logger{path: path, file: f}
	l.rebuild()
	return l, nil
}

// NewWriterLogger logs JSON lines to w only. Used where no log file is wanted,
// and by tests that capture output.
func NewWriterLogger(w io.Writer) *Logger {
	l := &Logger{console: w}
	l.zl = zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Logger()
	return l
}

// AttachConsole mirrors log entries to w in console format. Debug entries are
// only mirrored when verbose is set.
func (l *Logger) AttachConsole(w io.Writer, verbose bool) {
	if l == nil || w == nil {
		return
	}
	min := zerolog.InfoLevel
	if verbose {
		min = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !isTerminalWriter(w),
		TimeFormat: time.TimeOnly,
	}

	l.mu.Lock()
	l.console = levelFilter{w: cw, min: min}
	l.mu.Unlock()
	l.rebuild()
}

func (l *Logger) rebuild() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var writers []io.Writer
	if l.file != nil {
		writers = append(writers, zerolog.SyncWriter(l.file))
	}
	if l.console != nil {
		writers = append(writers, l.console)
	}
	var out io.Writer = io.Discard
	switch len(writers) {
	case 1:
		out = writers[0]
	case 2:
		out = zerolog.MultiLevelWriter(writers...)
	}
	l.zl = zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Path returns the log file path, or "" for writer-only and nil loggers.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logger) Debug(msg string) { l.write(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.write(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.write(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.write(zerolog.ErrorLevel, msg) }

func (l *Logger) write(level zerolog.Level, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	closed := l.closed
	zl := l.zl
	l.mu.Unlock()
	if closed {
		return
	}
	zl.WithLevel(level).Msg(msg)
}

// Flush syncs the log file to disk.
func (l *Logger) Flush() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil && !l.closed {
		_ = l.file.Sync()
	}
}

// Close stops further writes and closes the log file. The file is kept on
// disk; call RemoveLogFile to delete it.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// RemoveLogFile deletes the log file. Missing files are not an error.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type logRecord struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ExtractRecentErrors returns up to maxEntries of the most recent warning and
// error messages from the log file, oldest first.
func (l *Logger) ExtractRecentErrors(maxEntries int) []string {
	if l == nil || l.path == "" || maxEntries <= 0 {
		return nil
	}
	l.Flush()

	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec logRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Level {
		case zerolog.WarnLevel.String(), zerolog.ErrorLevel.String():
			entries = append(entries, rec.Message)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return entries
}

// sanitizeLogSuffix maps raw into a string that is safe inside a file name.
// Distinct safe inputs stay distinct.
func sanitizeLogSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxSuffixLen {
			break
		}
	}
	if b.Len() == 0 {
		return "log"
	}
	return b.String()
}

func SanitizeLogSuffix(raw string) string { return sanitizeLogSuffix(raw) }

type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) { return f.w.Write(p) }

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
