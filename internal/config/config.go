package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	DefaultPrefix     = "x-"
	DefaultLanguage   = "english"
	DefaultDecompiler = "unrpyc"
	DefaultTimeoutSec = 600
	DefaultSearchDir  = "."

	maxParallelWorkersLimit = 100
)

// DecompileOptions is the option set handed to the decompiler for every file
// of a batch.
type DecompileOptions struct {
	Overwrite            bool   `json:"overwrite" yaml:"overwrite" toml:"overwrite"`
	TryHarder            bool   `json:"try_harder" yaml:"try_harder" toml:"try_harder"`
	Dump                 bool   `json:"dump" yaml:"dump" toml:"dump"`
	NoPyExpr             bool   `json:"no_pyexpr" yaml:"no_pyexpr" toml:"no_pyexpr"`
	InitOffset           bool   `json:"init_offset" yaml:"init_offset" toml:"init_offset"`
	Comparable           bool   `json:"comparable" yaml:"comparable" toml:"comparable"`
	TagOutsideBlock      bool   `json:"tag_outside_block" yaml:"tag_outside_block" toml:"tag_outside_block"`
	SL1AsPython          bool   `json:"sl1_as_python" yaml:"sl1_as_python" toml:"sl1_as_python"`
	TranslationFile      string `json:"translation_file,omitempty" yaml:"translation_file,omitempty" toml:"translation_file,omitempty"`
	WriteTranslationFile string `json:"write_translation_file,omitempty" yaml:"write_translation_file,omitempty" toml:"write_translation_file,omitempty"`
	Language             string `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
}

// TranslationMode reports whether the batch extracts translations instead of
// writing decompiled sources.
func (o DecompileOptions) TranslationMode() bool {
	return strings.TrimSpace(o.WriteTranslationFile) != ""
}

// Config holds resolved CLI configuration.
type Config struct {
	ArchivePath       string
	SearchDir         string
	Prefix            string
	Workers           int
	Timeout           int
	Decompiler        string
	DecompilerCommand string
	ReportPath        string
	HistoryEnabled    bool
	HistoryPath       string
	Verbose           bool
	Quiet             bool
	Options           DecompileOptions
}

// ParseBoolFlag parses common truthy/falsey spellings, falling back to
// defaultValue for anything else.
func ParseBoolFlag(val string, defaultValue bool) bool {
	switch strings.TrimSpace(strings.ToLower(val)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// ResolveMaxParallelWorkers reads UNAPK_MAX_PARALLEL_WORKERS. It returns 0,
// meaning "one per hardware unit", when unset or invalid.
func ResolveMaxParallelWorkers() int {
	raw := strings.TrimSpace(os.Getenv(EnvPrefix + "_MAX_PARALLEL_WORKERS"))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return min(value, maxParallelWorkersLimit)
}

// ClampWorkers bounds a requested worker count by the hardware concurrency
// and the number of jobs, and never returns less than 1.
func ClampWorkers(requested, jobs int) int {
	limit := runtime.NumCPU()
	if requested > 0 && requested < limit {
		limit = requested
	}
	if jobs < limit {
		limit = jobs
	}
	return max(1, limit)
}

// ResolveTimeout returns the per-file decompile timeout in seconds.
func ResolveTimeout(configured int) int {
	if configured > 0 {
		return configured
	}
	raw := strings.TrimSpace(os.Getenv(EnvPrefix + "_TIMEOUT"))
	if raw == "" {
		return DefaultTimeoutSec
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return DefaultTimeoutSec
	}
	return value
}

// DefaultHistoryPath returns $HOME/.unapk/history.db, or "" when the home
// directory is unknown.
func DefaultHistoryPath() string {
	dir, ok := HomeConfigDir()
	if !ok {
		return ""
	}
	return filepath.Join(dir, "history.db")
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
