// Package watch reports archives that appear in a directory.
package watch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ilogger "renpy-unapk/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// ArchiveCallback receives the archives that settled since the last call,
// sorted by path.
type ArchiveCallback func(paths []string)

// ArchiveWatcher watches one directory for *.apk files being created or
// written. Subdirectories are not watched.
type ArchiveWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	callback ArchiveCallback
	debounce time.Duration
	log      *ilogger.Logger

	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	// serializes callbacks
	runMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewArchiveWatcher starts watching dir. Events are only delivered after
// Start.
func NewArchiveWatcher(dir string, log *ilogger.Logger, callback ArchiveCallback) (*ArchiveWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &ArchiveWatcher{
		watcher:  w,
		dir:      dir,
		callback: callback,
		debounce: DefaultDebounce,
		log:      log,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce sets the quiet period before pending archives are reported.
func (aw *ArchiveWatcher) SetDebounce(d time.Duration) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	aw.debounce = d
}

// Start begins consuming filesystem events until ctx is done or Stop is
// called.
func (aw *ArchiveWatcher) Start(ctx context.Context) {
	ctx, aw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(aw.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-aw.watcher.Events:
				if !ok {
					return
				}
				aw.handleEvent(event)
			case err, ok := <-aw.watcher.Errors:
				if !ok {
					return
				}
				aw.log.Warn("watch error: " + err.Error())
			}
		}
	}()
}

// Stop ends watching and waits for the event loop to exit. A callback in
// progress is allowed to finish; pending archives are dropped.
func (aw *ArchiveWatcher) Stop() {
	if aw.cancel != nil {
		aw.cancel()
		<-aw.done
	}
	_ = aw.watcher.Close()

	aw.mu.Lock()
	if aw.timer != nil {
		aw.timer.Stop()
	}
	aw.pending = make(map[string]struct{})
	aw.mu.Unlock()

	// wait for a running callback

	aw.runMu.Lock()
	defer aw.runMu.Unlock()
}

// IsArchive reports whether name looks like an Android package.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".apk")
}

func (aw *ArchiveWatcher) handleEvent(event fsnotify.Event) {
	if !IsArchive(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	aw.pending[event.Name] = struct{}{}
	if aw.timer != nil {
		aw.timer.Stop()
	}
	aw.timer = time.AfterFunc(aw.debounce, aw.flush)
}

func (aw *ArchiveWatcher) flush() {
	aw.mu.Lock()
	pending := aw.pending
	aw.pending = make(map[string]struct{})
	aw.mu.Unlock()

	if aw.callback == nil || len(pending) == 0 {
		return
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	aw.runMu.Lock()
	defer aw.runMu.Unlock()
	aw.log.Debug("archives settled: " + strings.Join(paths, ", "))
	aw.callback(paths)
}
