package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mholt/archives"
	"github.com/schollz/progressbar/v3"

	"renpy-unapk/internal/logger"
)

// ExtractStats summarizes the unpack step of one archive.
type ExtractStats struct {
	Entries int
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

// Extractor unpacks archives and restores the project layout.
type Extractor struct {
	log         *logger.Logger
	relocations []Relocation
	overwrite   bool
	progress    io.Writer
	normalizer  *Normalizer
}

// NewExtractor returns an Extractor that applies relocations. A nil log
// discards messages.
func NewExtractor(log *logger.Logger, relocations []Relocation) *Extractor {
	return &Extractor{log: log, relocations: append([]Relocation(nil), relocations...)}
}

// WithOverwrite lets relocations replace destinations that already exist in
// the project directory.
func (e *Extractor) WithOverwrite(overwrite bool) *Extractor {
	e.overwrite = overwrite
	return e
}

// WithNormalizer makes relocation treat a destination as taken when the name
// it will be normalized to already exists, so a re-run cannot leave prefixed
// names next to their normalized twins.
func (e *Extractor) WithNormalizer(n *Normalizer) *Extractor {
	e.normalizer = n
	return e
}

// WithProgress renders a progress bar on w while unpacking. Pass nil to
// disable it.
func (e *Extractor) WithProgress(w io.Writer) *Extractor {
	e.progress = w
	return e
}

// Extract unpacks archivePath into a staging directory next to the project
// directory and moves the relocation sources into the project. The staging
// directory is always removed. If the call fails and it created the project
// directory, the project directory is removed too; otherwise every move
// already made is undone and replaced entries are restored.
func (e *Extractor) Extract(ctx context.Context, archivePath string) (layout ProjectLayout, err error) {
	layout = ProjectLayout{
		ArchivePath: archivePath,
		ProjectDir:  ProjectDirFor(archivePath),
		Relocations: e.relocations,
	}
	fail := func(op string, err error) (ProjectLayout, error) {
		return layout, &ExtractionError{Archive: archivePath, Op: op, Err: err}
	}

	format, err := identify(ctx, archivePath)
	if err != nil {
		return fail("identify", err)
	}

	parent := filepath.Dir(layout.ProjectDir)
	staging, err := os.MkdirTemp(parent, ".unapk-staging-*")
	if err != nil {
		return fail("staging", err)
	}
	layout.StagingDir = staging
	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			e.log.Warn(fmt.Sprintf("Failed to remove staging directory %s: %v", staging, rmErr))
		}
	}()

	started := time.Now()
	stats, err := e.unpack(ctx, archivePath, format, staging)
	if err != nil {
		return fail("unpack", err)
	}
	e.log.Info(fmt.Sprintf("Unpacked %s: %d entries, %s in %s",
		filepath.Base(archivePath), stats.Entries, humanize.Bytes(uint64(stats.Bytes)),
		time.Since(started).Round(time.Millisecond)))
	if stats.Skipped > 0 {
		e.log.Warn(fmt.Sprintf("Skipped %d unsafe or unsupported entries", stats.Skipped))
	}

	moves, err := e.plan(staging, layout.ProjectDir)
	if err != nil {
		return fail("relocate", err)
	}

	created := false
	if exists, statErr := pathExists(layout.ProjectDir); statErr != nil {
		return fail("project", statErr)
	} else if !exists {
		created = true
	}
	if err := os.MkdirAll(layout.ProjectDir, 0o755); err != nil {
		return fail("project", err)
	}

	var applied []appliedMove
	defer func() {
		if err == nil {
			return
		}
		if created {
			if rmErr := os.RemoveAll(layout.ProjectDir); rmErr != nil {
				e.log.Warn(fmt.Sprintf("Failed to remove %s: %v", layout.ProjectDir, rmErr))
			}
			return
		}
		e.rollback(applied)
	}()

	aside := filepath.Join(staging, ".unapk-displaced")
	for i, m := range moves {
		if err := ctx.Err(); err != nil {
			return fail("relocate", err)
		}
		for j, d := range m.displaced {
			backup := filepath.Join(aside, strconv.Itoa(i), strconv.Itoa(j))
			if err := moveEntry(d, backup); err != nil {
				return fail("relocate", err)
			}
			applied = append(applied, appliedMove{from: d, to: backup})
		}
		if err := moveEntry(m.src, m.dst); err != nil {
			return fail("relocate", err)
		}
		applied = append(applied, appliedMove{from: m.src, to: m.dst})
		e.log.Debug(fmt.Sprintf("Moved %s -> %s", m.src, m.dst))
	}
	return layout, nil
}

type plannedMove struct {
	src, dst string
	// displaced are existing project entries set aside before the move.
	displaced []string
}

type appliedMove struct {
	from, to string
}

// rollback undoes applied moves in reverse order, restoring set-aside
// entries to their original place.
func (e *Extractor) rollback(applied []appliedMove) {
	for i := len(applied) - 1; i >= 0; i-- {
		m := applied[i]
		if err := moveEntry(m.to, m.from); err != nil {
			e.log.Warn(fmt.Sprintf("Failed to restore %s: %v", m.from, err))
		}
	}
}

// plan checks every relocation before anything is moved so a failure leaves
// the project directory untouched. A destination is taken when either its
// own name or its normalized name already exists in the project.
func (e *Extractor) plan(staging, projectDir string) ([]plannedMove, error) {
	var moves []plannedMove
	claimed := make(map[string]struct{})
	add := func(src, dst string) error {
		var displaced []string
		for _, candidate := range e.destCandidates(projectDir, dst) {
			if _, dup := claimed[candidate]; dup {
				return fmt.Errorf("%s: %w", candidate, ErrDestinationExists)
			}
			claimed[candidate] = struct{}{}
			taken, err := pathExists(candidate)
			if err != nil {
				return err
			}
			if !taken {
				continue
			}
			if !e.overwrite {
				return fmt.Errorf("%s: %w", candidate, ErrDestinationExists)
			}
			displaced = append(displaced, candidate)
		}
		moves = append(moves, plannedMove{src: src, dst: dst, displaced: displaced})
		return nil
	}

	for _, r := range e.relocations {
		src := r.sourcePath(staging)
		info, err := os.Lstat(src)
		if os.IsNotExist(err) {
			if r.Required {
				return nil, fmt.Errorf("%s: %w", r.Source, ErrMissingRequired)
			}
			e.log.Debug(fmt.Sprintf("Optional entry %s not present", r.Source))
			continue
		}
		if err != nil {
			return nil, err
		}

		if !r.mergesIntoProject() {
			if err := add(src, r.destPath(projectDir)); err != nil {
				return nil, err
			}
			continue
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: %w", r.Source, ErrNotDirectory)
		}
		children, err := os.ReadDir(src)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if err := add(filepath.Join(src, c.Name()), filepath.Join(projectDir, c.Name())); err != nil {
				return nil, err
			}
		}
	}
	return moves, nil
}

// destCandidates returns dst and, when it differs, the path dst takes once
// every component below projectDir is normalized.
func (e *Extractor) destCandidates(projectDir, dst string) []string {
	if e.normalizer == nil {
		return []string{dst}
	}
	rel, err := filepath.Rel(projectDir, dst)
	if err != nil {
		return []string{dst}
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	for i, p := range parts {
		parts[i] = e.normalizer.NormalizedName(p)
	}
	normalized := filepath.Join(append([]string{projectDir}, parts...)...)
	if normalized == dst {
		return []string{dst}
	}
	return []string{dst, normalized}
}

func identify(ctx context.Context, archivePath string) (archives.Extractor, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return nil, err
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return nil, ErrUnsupported
	}
	return ex, nil
}

func (e *Extractor) unpack(ctx context.Context, archivePath string, format archives.Extractor, dest string) (ExtractStats, error) {
	var stats ExtractStats

	var bar *progressbar.ProgressBar
	if e.progress != nil {
		if total, err := countEntries(ctx, archivePath, format); err == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(e.progress),
				progressbar.OptionSetDescription("Extracting"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return stats, err
	}
	defer f.Close()
	_, input, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return stats, err
	}

	root := filepath.Clean(dest) + string(os.PathSeparator)
	handler := func(ctx context.Context, info archives.FileInfo) error {
		stats.Entries++
		if bar != nil {
			_ = bar.Add(1)
		}
		target := filepath.Join(dest, filepath.FromSlash(info.NameInArchive))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			e.log.Warn(fmt.Sprintf("Path traversal detected, skipping %s", info.NameInArchive))
			stats.Skipped++
			return nil
		}
		switch {
		case info.IsDir():
			stats.Dirs++
			return os.MkdirAll(target, 0o755)
		case info.Mode()&os.ModeSymlink != 0 || info.LinkTarget != "":
			e.log.Debug(fmt.Sprintf("Skipping link %s", info.NameInArchive))
			stats.Skipped++
			return nil
		case !info.Mode().IsRegular():
			stats.Skipped++
			return nil
		}
		n, err := writeEntry(info, target)
		if err != nil {
			return fmt.Errorf("%s: %w", info.NameInArchive, err)
		}
		stats.Files++
		stats.Bytes += n
		return nil
	}

	if err := format.Extract(ctx, input, handler); err != nil {
		return stats, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return stats, nil
}

func writeEntry(info archives.FileInfo, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	r, err := info.Open()
	if err != nil {
		return 0, err
	}
	defer r.Close()

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	w, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.CopyBuffer(w, r, make([]byte, copyBufferSize))
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return n, err
	}
	return n, nil
}

func countEntries(ctx context.Context, archivePath string, format archives.Extractor) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	_, input, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return 0, err
	}
	count := 0
	err = format.Extract(ctx, input, func(context.Context, archives.FileInfo) error {
		count++
		return nil
	})
	return count, err
}
