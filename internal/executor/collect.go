package executor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var scriptExtensions = []string{".rpyc", ".rpymc"}

// IsScriptFile reports whether name looks like a compiled script.
func IsScriptFile(name string) bool {
	if len(name) < 5 {
		return false
	}
	for _, ext := range scriptExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// CollectFiles expands paths into the sorted list of compiled scripts to
// process. Directories are walked recursively; plain files are taken as
// given. Missing paths are reported in notFound and otherwise ignored.
func CollectFiles(paths []string) (files []string, notFound []string, err error) {
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				notFound = append(notFound, p)
				continue
			}
			return nil, notFound, statErr
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && IsScriptFile(d.Name()) {
				add(path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, notFound, fmt.Errorf("walk %s: %w", p, walkErr)
		}
	}
	sort.Strings(files)
	return files, notFound, nil
}

// BuildRequests turns a sorted file list into batch requests. Files that
// cannot be stat'ed get size 0; the decompiler reports them.
func BuildRequests(files []string, opts Options) []BatchRequest {
	reqs := make([]BatchRequest, 0, len(files))
	for i, f := range files {
		var size int64
		if info, err := os.Stat(f); err == nil {
			size = info.Size()
		}
		reqs = append(reqs, BatchRequest{Index: i, Path: f, Size: size, Options: opts})
	}
	return reqs
}
