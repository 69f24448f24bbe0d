package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"renpy-unapk/internal/logger"
)

// NormalizeStats summarizes one Normalize walk.
type NormalizeStats struct {
	Visited    int
	Renamed    int
	Collisions []*RenameCollisionError
	Failures   []error
}

// Normalizer strips a packaging prefix token from every name under a root.
type Normalizer struct {
	log         *logger.Logger
	token       string
	leadingOnly bool
}

// NewNormalizer returns a Normalizer that strips every occurrence of token
// from a name's stem.
func NewNormalizer(log *logger.Logger, token string) *Normalizer {
	return &Normalizer{log: log, token: token}
}

// LeadingOnly restricts stripping to occurrences at the start of the stem.
func (n *Normalizer) LeadingOnly(on bool) *Normalizer {
	n.leadingOnly = on
	return n
}

// NormalizedName returns name with the token removed from its stem. The
// extension is kept. Names that would end up with an empty stem are returned
// unchanged.
func (n *Normalizer) NormalizedName(name string) string {
	if n.token == "" {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if n.leadingOnly {
		for strings.HasPrefix(stem, n.token) {
			stem = stem[len(n.token):]
		}
	} else {
		for strings.Contains(stem, n.token) {
			stem = strings.ReplaceAll(stem, n.token, "")
		}
	}
	if stem == "" {
		return name
	}
	return stem + ext
}

// Normalize renames every entry below root, children before their parent.
// root itself is never renamed. Collisions and rename failures are recorded
// and the walk continues; the returned error is only set when root cannot be
// read at all.
func (n *Normalizer) Normalize(root string) (NormalizeStats, error) {
	var stats NormalizeStats
	info, err := os.Stat(root)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", root)
	}
	n.walk(root, &stats)
	if len(stats.Collisions) > 0 || len(stats.Failures) > 0 {
		n.log.Warn(fmt.Sprintf("Normalized %s with %d collisions and %d failures",
			root, len(stats.Collisions), len(stats.Failures)))
	}
	return stats, nil
}

func (n *Normalizer) walk(dir string, stats *NormalizeStats) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		n.fail(stats, fmt.Errorf("read %s: %w", dir, err))
		return
	}

	claimed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		claimed[entry.Name()] = struct{}{}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			n.walk(filepath.Join(dir, entry.Name()), stats)
		}
	}

	for _, entry := range entries {
		stats.Visited++
		name := entry.Name()
		target := n.NormalizedName(name)
		if target == name {
			if n.token != "" && strings.Contains(strings.TrimSuffix(name, filepath.Ext(name)), n.token) {
				n.log.Debug(fmt.Sprintf("Keeping %s: stripping would leave an empty name", filepath.Join(dir, name)))
			}
			continue
		}
		if _, taken := claimed[target]; taken {
			n.collide(stats, dir, name, target)
			continue
		}
		// Catches case-insensitive filesystems where the map lookup misses.
		if exists, _ := pathExists(filepath.Join(dir, target)); exists {
			n.collide(stats, dir, name, target)
			continue
		}
		if err := renameFn(filepath.Join(dir, name), filepath.Join(dir, target)); err != nil {
			n.fail(stats, fmt.Errorf("rename %s: %w", filepath.Join(dir, name), err))
			continue
		}
		delete(claimed, name)
		claimed[target] = struct{}{}
		stats.Renamed++
	}
}

func (n *Normalizer) collide(stats *NormalizeStats, dir, from, to string) {
	cerr := &RenameCollisionError{Dir: dir, From: from, To: to}
	stats.Collisions = append(stats.Collisions, cerr)
	n.log.Warn(cerr.Error())
}

func (n *Normalizer) fail(stats *NormalizeStats, err error) {
	stats.Failures = append(stats.Failures, err)
	n.log.Warn(err.Error())
}

// Err joins collisions and failures into one error, or nil.
func (s NormalizeStats) Err() error {
	errs := make([]error, 0, len(s.Collisions)+len(s.Failures))
	for _, c := range s.Collisions {
		errs = append(errs, c)
	}
	errs = append(errs, s.Failures...)
	return errors.Join(errs...)
}
