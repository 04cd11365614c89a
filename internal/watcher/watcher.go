// Package watcher monitors a download directory for new or grown poker
// export files and schedules pipeline re-runs. The pipeline itself stays
// a batch: the watcher only decides when to invoke it again, and the
// checkpoint map keeps repeated invocations idempotent.
package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of Write events a browser download
// produces into a single re-run.
const debounceDelay = 2 * time.Second

type ExportWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	pending *time.Timer

	onChange func()
	onError  func(err error)
}

type Config struct {
	// OnChange fires, debounced, after an export file appears or grows.
	OnChange func()
	OnError  func(err error)
}

func NewExportWatcher(dir string, cfg Config) (*ExportWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &ExportWatcher{
		dir:      dir,
		watcher:  w,
		done:     make(chan struct{}),
		onChange: cfg.OnChange,
		onError:  cfg.OnError,
	}, nil
}

// Start begins watching the export directory.
func (ew *ExportWatcher) Start() error {
	slog.Info("watcher starting", "dir", ew.dir)
	if err := ew.watcher.Add(ew.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", ew.dir, err)
	}
	go ew.watchLoop()
	return nil
}

// Stop stops the watcher and cancels any pending re-run.
func (ew *ExportWatcher) Stop() {
	ew.stopOnce.Do(func() {
		slog.Info("watcher stopped", "dir", ew.dir)
		close(ew.done)
		_ = ew.watcher.Close()
		ew.mu.Lock()
		if ew.pending != nil {
			ew.pending.Stop()
		}
		ew.mu.Unlock()
	})
}

func (ew *ExportWatcher) watchLoop() {
	for {
		select {
		case <-ew.done:
			return
		case event, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !IsExportFile(event.Name) {
				continue
			}
			slog.Debug("export changed", "path", event.Name)
			ew.scheduleChange()
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			if ew.onError != nil {
				ew.onError(err)
			}
		}
	}
}

func (ew *ExportWatcher) scheduleChange() {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.pending != nil {
		ew.pending.Stop()
	}
	ew.pending = time.AfterFunc(debounceDelay, func() {
		select {
		case <-ew.done:
			return
		default:
		}
		if ew.onChange != nil {
			ew.onChange()
		}
	})
}

// IsExportFile reports whether path names a ledger or hand-history export.
func IsExportFile(path string) bool {
	name := filepath.Base(path)
	if ok, err := filepath.Match("*_ledger.csv", name); err == nil && ok {
		return true
	}
	ok, err := filepath.Match("*_hand_histories.txt", name)
	return err == nil && ok
}
