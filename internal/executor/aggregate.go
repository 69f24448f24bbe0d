package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"renpy-unapk/internal/utils"
)

// ErrOutputExists is returned when a file would be overwritten without
// permission.
var ErrOutputExists = errors.New("output file already exists")

// Summarize counts results by state. Results with an unknown state count as
// errors.
func Summarize(results []TaskResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.State {
		case StateOK:
			s.OK++
		case StateSkip:
			s.Skip++
		case StateBadHeader:
			s.BadHeader++
		default:
			s.Error++
		}
	}
	return s
}

// MergeTranslations combines the translations of successful results. Entries
// are applied in input order, so for duplicate keys the file that sorts last
// wins regardless of completion order.
func MergeTranslations(results []TaskResult) *Translations {
	ordered := make([]TaskResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	merged := NewTranslations()
	for _, r := range ordered {
		if r.State != StateOK || r.Value == nil {
			continue
		}
		for k, v := range r.Value.Dialogue {
			merged.Dialogue[k] = v
		}
		for k, v := range r.Value.Strings {
			merged.Strings[k] = v
		}
	}
	return merged
}

type translationFile struct {
	Language string `json:"language"`
	*Translations
}

// WriteTranslationFile writes merged translations as JSON. An existing file
// is only replaced when overwrite is set.
func WriteTranslationFile(path, language string, merged *Translations, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrOutputExists)
		}
	}
	if merged == nil {
		merged = NewTranslations()
	}
	data, err := json.MarshalIndent(translationFile{Language: language, Translations: merged}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode translations: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".translations-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// GenerateFinalOutput returns the closing line of a batch.
func GenerateFinalOutput(s Summary) string {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if s.Total == 0 {
		return yellow("No script files to decompile.")
	}
	line := fmt.Sprintf("Processed %d script %s: %s ok, %s skipped, %s bad header, %s failed.",
		s.Total, utils.Plural(s.Total, "file", "files"),
		green(s.OK), yellow(s.Skip), red(s.BadHeader), red(s.Error))
	if s.Failed() == 0 {
		return line
	}
	return line + " " + red(fmt.Sprintf("%d %s could not be decompiled.", s.Failed(), utils.Plural(s.Failed(), "file", "files")))
}
