package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"renpy-unapk/internal/archive"
	config "renpy-unapk/internal/config"
	executor "renpy-unapk/internal/executor"
	"renpy-unapk/internal/history"
	"renpy-unapk/internal/report"
	"renpy-unapk/internal/watch"
)

// ArchiveResult is the outcome of one ProcessArchive or DecompilePaths call.
type ArchiveResult struct {
	RunID      string
	Archive    string
	ProjectDir string
	Normalize  archive.NormalizeStats
	Results    []TaskResult
	Summary    Summary
	StartedAt  time.Time
	FinishedAt time.Time
}

// Tool restores archives into project directories and decompiles them.
type Tool struct {
	cfg       *config.Config
	log       *Logger
	out       io.Writer
	layout    config.ResolvedLayout
	decompile executor.DecompileFunc
	history   *history.Store
	progress  io.Writer
}

// NewTool prepares a run from cfg. Output meant for the user goes to out.
func NewTool(cfg *config.Config, log *Logger, out io.Writer) (*Tool, error) {
	timeout := time.Duration(config.ResolveTimeout(cfg.Timeout)) * time.Second
	fn, err := newDecompilerFn(log, cfg.Decompiler, cfg.DecompilerCommand, timeout)
	if err != nil {
		return nil, err
	}

	t := newExtractTool(cfg, log, out)
	t.decompile = fn
	if cfg.HistoryEnabled && cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Warn(fmt.Sprintf("Run history disabled: %v", err))
		} else {
			t.history = store
		}
	}
	return t, nil
}

// newExtractTool returns a Tool that can only Extract.
func newExtractTool(cfg *config.Config, log *Logger, out io.Writer) *Tool {
	if out == nil {
		out = io.Discard
	}
	t := &Tool{
		cfg:    cfg,
		log:    log,
		out:    out,
		layout: config.ResolveLayout(cfg.Prefix),
	}
	if !cfg.Quiet && isTerminal() {
		t.progress = os.Stderr
	}
	return t
}

// Close releases the history database.
func (t *Tool) Close() error {
	if t.history == nil {
		return nil
	}
	return t.history.Close()
}

func (t *Tool) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// DiscoverArchives lists the archives directly inside dir, sorted by name.
func DiscoverArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, e := range entries {
		if e.Type().IsRegular() && watch.IsArchive(e.Name()) {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(found)
	return found, nil
}

// ProcessAll processes each archive independently and returns how many
// failed. A failure is reported and the next archive is attempted.
func (t *Tool) ProcessAll(ctx context.Context, paths []string) int {
	failed := 0
	for _, p := range paths {
		if ctx.Err() != nil {
			t.log.Warn("Interrupted; remaining archives skipped")
			return failed + 1
		}
		if _, err := t.ProcessArchive(ctx, p); err != nil {
			failed++
			t.log.Error(fmt.Sprintf("%s failed: %v", p, err))
			t.printf("%s failed. Error:\n%v\n", p, err)
			continue
		}
		t.printf("%s restored.\n", p)
	}
	return failed
}

// ProcessArchive extracts one archive, strips the obfuscation prefix from the
// project tree and decompiles every compiled script in it.
func (t *Tool) ProcessArchive(ctx context.Context, path string) (res ArchiveResult, err error) {
	res = ArchiveResult{RunID: uuid.NewString(), Archive: path, StartedAt: time.Now()}
	defer func() { t.finish(ctx, &res, err) }()

	t.printf("Restoring %s...\n", path)
	layout, stats, err := t.Extract(ctx, path)
	res.ProjectDir = layout.ProjectDir
	res.Normalize = stats
	if err != nil {
		return res, err
	}

	err = t.decompileInto(ctx, &res, []string{layout.ProjectDir})
	return res, err
}

// Extract runs only the extraction and normalization steps.
func (t *Tool) Extract(ctx context.Context, path string) (archive.ProjectLayout, archive.NormalizeStats, error) {
	n := archive.NewNormalizer(t.log, t.layout.Prefix).LeadingOnly(t.layout.LeadingOnly)
	extractor := archive.NewExtractor(t.log, t.layout.Relocations).
		WithOverwrite(t.cfg.Options.Overwrite).
		WithNormalizer(n).
		WithProgress(t.progress)
	layout, err := extractor.Extract(ctx, path)
	if err != nil {
		return layout, archive.NormalizeStats{}, err
	}
	stats, err := t.normalize(n, layout.ProjectDir)
	return layout, stats, err
}

func (t *Tool) normalize(n *archive.Normalizer, dir string) (archive.NormalizeStats, error) {
	stats, err := n.Normalize(dir)
	if err != nil {
		return stats, err
	}
	if len(stats.Collisions) > 0 || len(stats.Failures) > 0 {
		t.log.Warn(fmt.Sprintf("%d name collisions and %d rename failures under %s", len(stats.Collisions), len(stats.Failures), dir))
	}
	return stats, nil
}

// DecompilePaths decompiles the given files and directories without any
// extraction step.
func (t *Tool) DecompilePaths(ctx context.Context, paths []string) (res ArchiveResult, err error) {
	res = ArchiveResult{RunID: uuid.NewString(), Archive: strings.Join(paths, ", "), StartedAt: time.Now()}
	defer func() { t.finish(ctx, &res, err) }()

	err = t.decompileInto(ctx, &res, paths)
	return res, err
}

func (t *Tool) decompileInto(ctx context.Context, res *ArchiveResult, paths []string) error {
	files, notFound, err := collectFiles(paths)
	for _, p := range notFound {
		t.printf("File not found: %s\n", p)
	}
	if err != nil {
		return err
	}

	opts := t.cfg.Options
	reqs := executor.BuildRequests(files, opts)
	res.Results = runBatch(ctx, t.log, t.out, reqs, t.decompile, t.cfg.Workers)
	res.Summary = summarize(res.Results)

	if opts.TranslationMode() && len(res.Results) > 0 {
		target := report.PathFor(opts.WriteTranslationFile, res.Archive)
		t.printf("Writing translations to %s...\n", target)
		merged := executor.MergeTranslations(res.Results)
		if err := executor.WriteTranslationFile(target, opts.Language, merged, opts.Overwrite); err != nil {
			if errors.Is(err, executor.ErrOutputExists) {
				return fmt.Errorf("%s already exists; use --clobber to replace it", target)
			}
			return fmt.Errorf("write translations: %w", err)
		}
	}

	t.printf("%s\n", generateFinalOutput(res.Summary))
	return nil
}

// finish records the run in history and writes the report file. Neither
// failure changes the outcome of the run.
func (t *Tool) finish(ctx context.Context, res *ArchiveResult, runErr error) {
	res.FinishedAt = time.Now()

	if t.history != nil {
		run := &history.Run{
			ID:         res.RunID,
			Archive:    res.Archive,
			ProjectDir: res.ProjectDir,
			Status:     history.StatusOK,
			Total:      res.Summary.Total,
			OK:         res.Summary.OK,
			Skip:       res.Summary.Skip,
			BadHeader:  res.Summary.BadHeader,
			Error:      res.Summary.Error,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
		}
		if runErr != nil {
			run.Status = history.StatusFailed
			run.Message = runErr.Error()
		}
		for _, r := range res.Results {
			if r.State == executor.StateOK {
				continue
			}
			run.Files = append(run.Files, history.FileRecord{
				File:     r.File,
				State:    string(r.State),
				Error:    r.ErrorText(),
				Duration: r.Duration,
			})
		}
		// Recording must survive an interrupted run.
		if err := t.history.Record(context.WithoutCancel(ctx), run); err != nil {
			t.log.Warn(fmt.Sprintf("Failed to record run history: %v", err))
		}
	}

	if t.cfg.ReportPath == "" {
		return
	}
	target := report.PathFor(t.cfg.ReportPath, res.Archive)
	doc := &report.Report{
		RunID:      res.RunID,
		Archive:    res.Archive,
		ProjectDir: res.ProjectDir,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    res.Summary,
		Files:      report.FromResults(res.Results),
	}
	if t.cfg.Options.TranslationMode() {
		doc.Language = t.cfg.Options.Language
	}
	if err := report.Write(target, doc); err != nil {
		t.log.Warn(fmt.Sprintf("Failed to write report %s: %v", target, err))
		return
	}
	t.log.Info("Report written to " + target)
}
