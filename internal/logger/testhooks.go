package logger

import (
	"os"
	"path/filepath"
	"time"
)

// swap installs fn (or def when fn is nil) into dst and returns a func that
// restores the previous value.
func swap[T any](dst *T, fn T, isNil bool, def T) (restore func()) {
	prev := *dst
	if isNil {
		*dst = def
	} else {
		*dst = fn
	}
	return func() { *dst = prev }
}

func SetProcessRunningCheck(fn func(int) bool) (restore func()) {
	return swap(&processRunningCheck, fn, fn == nil, isProcessRunning)
}

func SetProcessStartTimeFn(fn func(int) time.Time) (restore func()) {
	return swap(&processStartTimeFn, fn, fn == nil, getProcessStartTime)
}

func SetRemoveLogFileFn(fn func(string) error) (restore func()) {
	return swap(&removeLogFileFn, fn, fn == nil, os.Remove)
}

func SetGlobLogFilesFn(fn func(string) ([]string, error)) (restore func()) {
	return swap(&globLogFiles, fn, fn == nil, filepath.Glob)
}

func SetFileStatFn(fn func(string) (os.FileInfo, error)) (restore func()) {
	return swap(&fileStatFn, fn, fn == nil, os.Lstat)
}

func SetEvalSymlinksFn(fn func(string) (string, error)) (restore func()) {
	return swap(&evalSymlinksFn, fn, fn == nil, filepath.EvalSymlinks)
}
