package session

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the event bursts SQLite produces when it
// checkpoints the WAL into a single log line.
const debounceWindow = 500 * time.Millisecond

// FileWatcher watches a campaign file for on-disk changes so the user can
// be told when another process touches the file they have open. It watches
// the parent directory rather than the file itself, which survives the
// rename-and-replace pattern editors and sync tools use.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	base    string
	logger  *log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher starts watching the campaign file at path.
func NewFileWatcher(path string, logger *log.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw := &FileWatcher{
		watcher: w,
		path:    path,
		base:    filepath.Base(path),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go fw.run()
	return fw, nil
}

func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			fw.scheduleNotify()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Printf("watcher error for %s: %v", fw.path, err)
		case <-fw.done:
			return
		}
	}
}

// matches reports whether an event concerns the campaign file or one of
// its SQLite sidecar files (-wal, -shm).
func (fw *FileWatcher) matches(name string) bool {
	return strings.HasPrefix(filepath.Base(name), fw.base)
}

func (fw *FileWatcher) scheduleNotify() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounce != nil {
		fw.debounce.Stop()
	}
	fw.debounce = time.AfterFunc(debounceWindow, func() {
		fw.logger.Printf("campaign file %s changed on disk", fw.path)
	})
}

// Stop stops the watcher. Safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.mu.Lock()
		if fw.debounce != nil {
			fw.debounce.Stop()
		}
		fw.mu.Unlock()
		fw.watcher.Close()
	})
}
