// Package report writes a machine-readable summary of one archive run.
// The format follows the file extension: .json, .yaml/.yml or .toml.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"renpy-unapk/internal/executor"
)

// Report is the document written for one archive.
type Report struct {
	RunID      string           `json:"run_id" yaml:"run_id" toml:"run_id"`
	Archive    string           `json:"archive" yaml:"archive" toml:"archive"`
	ProjectDir string           `json:"project_dir" yaml:"project_dir" toml:"project_dir"`
	Language   string           `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at" toml:"started_at"`
	FinishedAt time.Time        `json:"finished_at" yaml:"finished_at" toml:"finished_at"`
	Summary    executor.Summary `json:"summary" yaml:"summary" toml:"summary"`
	Files      []File           `json:"files" yaml:"files" toml:"files"`
}

// File is one script's entry in a Report.
type File struct {
	Path       string   `json:"path" yaml:"path" toml:"path"`
	State      string   `json:"state" yaml:"state" toml:"state"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	DurationMS int64    `json:"duration_ms" yaml:"duration_ms" toml:"duration_ms"`
	LogLines   []string `json:"log_lines,omitempty" yaml:"log_lines,omitempty" toml:"log_lines,omitempty"`
}

// FromResults builds the file list in input order.
func FromResults(results []executor.TaskResult) []File {
	sorted := make([]executor.TaskResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	files := make([]File, 0, len(sorted))
	for _, r := range sorted {
		files = append(files, File{
			Path:       r.File,
			State:      string(r.State),
			Error:      r.ErrorText(),
			DurationMS: r.Duration.Milliseconds(),
			LogLines:   r.LogLines,
		})
	}
	return files
}

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the encoding from path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported report format %q (use .json, .yaml or .toml)", filepath.Ext(path))
}

// Encode renders r in the given format.
func Encode(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTOML:
		return toml.Marshal(r)
	}
	return nil, fmt.Errorf("unknown report format %q", f)
}

// Write encodes r according to path's extension and writes it, creating
// parent directories as needed.
func Write(path string, r *Report) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(r, f)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// PathFor expands the report path for one archive. A "{name}" placeholder is
// replaced with the archive's base name without extension, so a batch of
// archives does not overwrite a single report.
func PathFor(pattern, archivePath string) string {
	if pattern == "" {
		return ""
	}
	name := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	return strings.ReplaceAll(pattern, "{name}", name)
}
