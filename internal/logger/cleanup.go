package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Logs of processes whose start time cannot be determined are treated as
// orphaned once they are older than this.
const unknownStartRetention = 7 * 24 * time.Hour

var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupStats describes one CleanupOldLogs pass.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

func (s *CleanupStats) keep(path string) {
	s.Kept++
	s.KeptFiles = append(s.KeptFiles, path)
}

// CleanupOldLogs removes log files left behind by processes that are no
// longer running. Files that cannot be removed stay in place and are reported
// through the returned error.
func CleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	tempDir := os.TempDir()

	var matches []string
	seen := make(map[string]struct{})
	for _, prefix := range LogPrefixes() {
		found, err := globLogFiles(filepath.Join(tempDir, prefix+"-*.log"))
		if err != nil {
			return stats, fmt.Errorf("list log files: %w", err)
		}
		for _, path := range found {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			matches = append(matches, path)
		}
	}

	var errs []error
	for _, path := range matches {
		stats.Scanned++

		pid, ok := parsePIDFromLog(path)
		if !ok {
			stats.keep(path)
			continue
		}
		if unsafe, reason := isUnsafeFile(path, tempDir); unsafe {
			LogWarn(fmt.Sprintf("Skipping log cleanup for %s: %s", path, reason))
			stats.keep(path)
			continue
		}
		if processRunningCheck(pid) && !isPIDReused(path, pid) {
			stats.keep(path)
			continue
		}
		if err := removeLogFileFn(path); err != nil {
			stats.Errors++
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, path)
	}

	return stats, errors.Join(errs...)
}

// parsePIDFromLog extracts the pid from renpy-unapk-<pid>[-suffix].log.
func parsePIDFromLog(path string) (int, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".log") {
		return 0, false
	}
	name = strings.TrimSuffix(name, ".log")

	for _, prefix := range LogPrefixes() {
		rest, ok := strings.CutPrefix(name, prefix+"-")
		if !ok {
			continue
		}
		digits, _, _ := strings.Cut(rest, "-")
		if digits == "" {
			return 0, false
		}
		pid, err := strconv.Atoi(digits)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}

// isPIDReused reports whether the log predates the process currently holding
// its pid.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}
	start := processStartTimeFn(pid)
	if start.IsZero() {
		return time.Since(info.ModTime()) > unknownStartRetention
	}
	return info.ModTime().Before(start)
}

// isUnsafeFile refuses symlinks and anything resolving outside tempDir.
func isUnsafeFile(path, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, fmt.Sprintf("cannot stat file: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, fmt.Sprintf("cannot resolve path: %v", err)
	}
	base, err := filepath.EvalSymlinks(tempDir)
	if err != nil {
		if base, err = filepath.Abs(tempDir); err != nil {
			return true, fmt.Sprintf("cannot resolve tempDir: %v", err)
		}
	}
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(resolved))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}
