package executor

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	config "renpy-unapk/internal/config"
)

// TaskState is the outcome class of one file in a batch.
type TaskState string

const (
	StateOK        TaskState = "ok"
	StateSkip      TaskState = "skip"
	StateBadHeader TaskState = "bad_header"
	StateError     TaskState = "error"
)

// Valid reports whether s is one of the four known states.
func (s TaskState) Valid() bool {
	switch s {
	case StateOK, StateSkip, StateBadHeader, StateError:
		return true
	}
	return false
}

var (
	// ErrBadHeader marks a file that is not a recognized compiled script.
	ErrBadHeader = errors.New("not a recognized compiled script header")
	// ErrSkip marks a file that was intentionally not processed.
	ErrSkip = errors.New("skipped")
	// ErrNoFiles is returned when a batch has nothing to process.
	ErrNoFiles = errors.New("no script files to decompile")
)

// Options is the option set applied to every file of a batch.
type Options = config.DecompileOptions

// BatchRequest is one unit of batch work. Index is the position in the
// sorted input list.
type BatchRequest struct {
	Index   int
	Path    string
	Size    int64
	Options Options
}

// Translations is the dialogue and string table extracted from one file, or
// merged from several.
type Translations struct {
	Dialogue map[string]json.RawMessage `json:"dialogue"`
	Strings  map[string]string          `json:"strings"`
}

// NewTranslations returns empty, non-nil tables.
func NewTranslations() *Translations {
	return &Translations{
		Dialogue: map[string]json.RawMessage{},
		Strings:  map[string]string{},
	}
}

// TaskResult is the outcome of one BatchRequest.
type TaskResult struct {
	Index    int           `json:"index"`
	File     string        `json:"file"`
	State    TaskState     `json:"state"`
	LogLines []string      `json:"log_lines,omitempty"`
	Error    error         `json:"-"`
	Value    *Translations `json:"-"`
	Duration time.Duration `json:"duration"`
}

// NewTaskResult returns the pessimistic starting result for req.
func NewTaskResult(req BatchRequest) TaskResult {
	return TaskResult{Index: req.Index, File: req.Path, State: StateError}
}

// ErrorText returns the error message, or "".
func (r TaskResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// FileOutput is what a DecompileFunc hands back for one file.
type FileOutput struct {
	LogLines []string
	Value    *Translations
}

// Summary counts results per state. The four counts always add up to Total.
type Summary struct {
	Total     int `json:"total" yaml:"total" toml:"total"`
	OK        int `json:"ok" yaml:"ok" toml:"ok"`
	Skip      int `json:"skip" yaml:"skip" toml:"skip"`
	BadHeader int `json:"bad_header" yaml:"bad_header" toml:"bad_header"`
	Error     int `json:"error" yaml:"error" toml:"error"`
}

// Failed returns the number of files that did not decompile.
func (s Summary) Failed() int { return s.BadHeader + s.Error }
